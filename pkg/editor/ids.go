package editor

import (
	"fmt"

	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

// Element id suffixes appended to a step's full id. Together with FullID
// they are the addressing contract with the presentation surface.
const (
	SuffixRow              = "_row"
	SuffixHandle           = "_handle"
	SuffixData             = "_data"
	SuffixData1            = "_data1"
	SuffixData2            = "_data2"
	SuffixChildren         = "_children"
	SuffixToggleChildren   = "_btn_toggle_children"
	SuffixToggleData2      = "_btn_toggle_data2"
	SuffixCloseAllChildren = "_btn_close_all_children"
	SuffixCreate           = "_btn_create"
	SuffixKill             = "_btn_kill"
)

// Button classes for the disclosure toggles.
const (
	ClassOpen   = "mini_button_open"
	ClassClosed = "mini_button_closed"
)

// StepID returns the composite element id "{tree-id}_step_{node-id}".
func StepID(treeID string, nodeID tree.NodeID) string {
	return fmt.Sprintf("%s_step_%d", treeID, nodeID)
}

// FullID returns the element id of n's step container.
func FullID(n *tree.Node) string {
	return StepID(n.Tree().ID(), n.ID())
}
