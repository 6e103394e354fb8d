package fastview

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attribute keys or 'textContent', values are the strings to which these are set.
	// Example: ('x','123') means set attribute 'x' to 123. 'textContent' is reserved:
	// ('textContent','abc') means set ele.textContent to abc.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}
