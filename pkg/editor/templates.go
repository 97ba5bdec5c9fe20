package editor

import (
	"html/template"
	"strings"

	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

type stepData struct {
	EID string
	ID  tree.NodeID
}

var stepRootTmpl = template.Must(template.New("step_root").Parse(`
<div id="{{ .EID }}_step_{{ .ID }}" class="step">
  <div id="{{ .EID }}_step_{{ .ID }}_children"></div>
</div>
`))

var stepTmpl = template.Must(template.New("step").Parse(`
<div id="{{ .EID }}_step_{{ .ID }}" class="step">
  <div id="{{ .EID }}_step_{{ .ID }}_row" class="step_row">
    <div id="{{ .EID }}_step_{{ .ID }}_handle" class="step_handle">
      <button id="{{ .EID }}_step_{{ .ID }}_btn_toggle_children" class="mini_button"></button>
      <button id="{{ .EID }}_step_{{ .ID }}_btn_toggle_data2" class="mini_button"></button>
      <button id="{{ .EID }}_step_{{ .ID }}_btn_close_all_children" class="mini_button"></button>
      <button id="{{ .EID }}_step_{{ .ID }}_btn_create" class="mini_button"><object style="display: block;" data="svg/c_icon.svg" type="image/svg+xml"></object></button>
      <button id="{{ .EID }}_step_{{ .ID }}_btn_kill" class="mini_button"><object style="display: block;" data="svg/k_icon.svg" type="image/svg+xml"></object></button>
    </div>
    <div id="{{ .EID }}_step_{{ .ID }}_data" class="step_data">
      <div id="{{ .EID }}_step_{{ .ID }}_data1" class="step_data1"></div>
      <div id="{{ .EID }}_step_{{ .ID }}_data2" class="step_data2" style="display: none;"></div>
    </div>
  </div>
  <div id="{{ .EID }}_step_{{ .ID }}_children" class="step_children"></div>
</div>
`))

func execute(tmpl *template.Template, n *tree.Node) string {
	var sb strings.Builder
	err := tmpl.Execute(&sb, stepData{EID: n.Tree().ID(), ID: n.ID()})
	tree.Assert(err == nil, "render %s for node %d: %v", tmpl.Name(), n.ID(), err)
	return sb.String()
}
