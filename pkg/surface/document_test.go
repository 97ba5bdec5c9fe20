package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInnerHTMLIndexesIDs(t *testing.T) {
	d := NewDocument("editor")
	require.NoError(t, d.SetInnerHTML("editor", `<div id="a"><span id="b">x</span></div>`))

	assert.True(t, d.Has("a"))
	assert.True(t, d.Has("b"))
	assert.Equal(t, "x", d.Text("a"))

	require.NoError(t, d.SetInnerHTML("editor", `<p id="c">y</p>`))
	assert.False(t, d.Has("a"), "replaced content must be unindexed")
	assert.False(t, d.Has("b"))
	assert.Equal(t, []string{"c"}, d.ChildIDs("editor"))
}

func TestPrependAndInsertAfterOrder(t *testing.T) {
	d := NewDocument("list")
	require.NoError(t, d.Append("list", `<div id="one"></div>`))
	require.NoError(t, d.Append("list", `<div id="three"></div>`))
	require.NoError(t, d.Prepend("list", `<div id="zero"></div>`))
	require.NoError(t, d.InsertAfter("one", `<div id="two"></div>`))
	require.NoError(t, d.InsertAfter("three", `<div id="four"></div>`))

	assert.Equal(t, []string{"zero", "one", "two", "three", "four"}, d.ChildIDs("list"))
}

func TestUnknownIDs(t *testing.T) {
	d := NewDocument("root")
	assert.ErrorIs(t, d.Prepend("nope", "<b></b>"), ErrNoElement)
	assert.ErrorIs(t, d.InsertAfter("nope", "<b></b>"), ErrNoElement)
	assert.NotPanics(t, func() {
		d.Remove("nope")
		d.SetHidden("nope", true)
		d.SwapClass("nope", "a", "b")
	})
	assert.False(t, d.Click("nope"))
}

func TestRemoveDropsSubtreeAndHandlers(t *testing.T) {
	d := NewDocument("root")
	require.NoError(t, d.SetInnerHTML("root", `<div id="a"><button id="btn"></button></div>`))
	clicks := 0
	d.OnClick("btn", func() { clicks++ })
	assert.True(t, d.Click("btn"))

	d.Remove("a")
	assert.False(t, d.Has("btn"))
	assert.False(t, d.Click("btn"))
	assert.Equal(t, 1, clicks)
}

func TestSetHiddenKeepsOtherStyles(t *testing.T) {
	d := NewDocument("root")
	require.NoError(t, d.SetInnerHTML("root", `<div id="a" style="color: red; display: none;"></div>`))
	assert.True(t, d.Hidden("a"))

	d.SetHidden("a", false)
	assert.False(t, d.Hidden("a"))
	n, _ := d.Element("a")
	assert.Equal(t, "color: red;", getAttr(n, "style"))

	d.SetHidden("a", true)
	assert.True(t, d.Hidden("a"))
}

func TestSwapClass(t *testing.T) {
	d := NewDocument("root")
	require.NoError(t, d.SetInnerHTML("root", `<button id="b" class="mini_button"></button>`))

	d.SwapClass("b", "mini_button_closed", "mini_button_open")
	assert.True(t, d.HasClass("b", "mini_button"))
	assert.True(t, d.HasClass("b", "mini_button_open"))

	d.SwapClass("b", "mini_button_open", "mini_button_closed")
	assert.False(t, d.HasClass("b", "mini_button_open"))
	assert.True(t, d.HasClass("b", "mini_button_closed"))
}

func TestHTMLRendering(t *testing.T) {
	d := NewDocument("root")
	require.NoError(t, d.SetInnerHTML("root", `<span id="s">a &lt; b</span>`))

	out, err := d.HTML()
	require.NoError(t, err)
	assert.Equal(t, `<div id="root"><span id="s">a &lt; b</span></div>`, out)

	inner, err := d.InnerHTML("root")
	require.NoError(t, err)
	assert.Equal(t, `<span id="s">a &lt; b</span>`, inner)
}
