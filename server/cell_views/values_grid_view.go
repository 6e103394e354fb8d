package cell_views

import (
	"fmt"
	"html/template"

	"rlgym/server/fastview"
)

// ValuesGrid shows an agent's state values and greedy policy per board cell.
type ValuesGrid struct {
	name string
}

func NewValuesGrid(name string) *ValuesGrid {
	return &ValuesGrid{name: template.HTMLEscapeString(name)}
}

// Parse adds the grid's template, executed over a Cells, to t and returns its name.
func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.name
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div class="values-grid">
			<h4>{{ .Agent }}</h4>
			{{ $agent := .Agent }}
			<svg width="{{ .Width }}px" height="{{ .Height }}px" style="shape-rendering: crispEdges;">
			{{ range $row := .Cells }}
				{{ range $cell := $row }}
				<g>
					<rect id="{{ $agent }}-{{ $cell.X }}-{{ $cell.Y }}-cell"
						x="{{ $cell.Left }}"
						y="{{ $cell.Top }}"
						width="` + fmt.Sprint(CellDim) + `"
						height="` + fmt.Sprint(CellDim) + `"
						fill="{{ $cell.Fill }}"
						stroke="black"
						stroke-width="1"/>
					<text id="{{ $agent }}-{{ $cell.X }}-{{ $cell.Y }}-value-text"
						x="{{ $cell.Left }}" dx="` + fmt.Sprint(CellDim/2) + `"
						y="{{ $cell.Top }}" dy="` + fmt.Sprint(CellDim/2-10) + `"
						stroke="blue"
						text-anchor="middle">{{ $cell.Label }}</text>
					<svg x="{{ $cell.Left }}" y="{{ $cell.Top }}" overflow="visible">
						<g transform="translate(` + fmt.Sprint(CellDim/2) + `, ` + fmt.Sprint(CellDim/2+20) + `)">
							<text id="{{ $agent }}-{{ $cell.X }}-{{ $cell.Y }}-policy-arrow"
								stroke="blue" stroke-width="1"
								dominant-baseline="central" text-anchor="middle"
								visibility="{{ $cell.ArrowVisibility }}"
								transform="rotate({{ $cell.PolicyArrowRotation }})">&uarr;</text>
						</g>
					</svg>
				</g>
				{{ end }}
			{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}

// Update returns the set of element updates needed for the view to reflect cells.
func (vg *ValuesGrid) Update(cells Cells) (ops []fastview.EleUpdate) {
	for _, row := range cells.Cells {
		for _, cell := range row {
			prefix := fmt.Sprintf("%s-%d-%d", cells.Agent, cell.X, cell.Y)
			ops = append(ops,
				fastview.EleUpdate{
					EleId: prefix + "-cell",
					Ops:   []fastview.Op{{Key: "fill", Value: cell.Fill}},
				},
				fastview.EleUpdate{
					EleId: prefix + "-value-text",
					Ops:   []fastview.Op{{Key: "textContent", Value: cell.Label}},
				},
				fastview.EleUpdate{
					EleId: prefix + "-policy-arrow",
					Ops: []fastview.Op{
						{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)},
						{Key: "visibility", Value: cell.ArrowVisibility},
					},
				},
			)
		}
	}
	return
}
