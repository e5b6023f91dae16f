package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/xiuxian/internal/dispatch"
)

// formField is one input of an action form. Fields with options are chosen
// with left/right; the rest are typed.
type formField struct {
	field   dispatch.Field
	input   textinput.Model
	choose  bool
	options []dispatch.Option
	choice  int
}

// actionForm collects the body of one action before it is executed.
type actionForm struct {
	action dispatch.Action
	id     int
	fields []formField
	focus  int
	err    string
	busy   bool
}

// newForm builds a form for a on entity id. Options for Choice and Ref
// fields are read from the current snapshots.
func newForm(a dispatch.Action, id int, d Dispatcher) (*actionForm, error) {
	f := &actionForm{action: a, id: id}
	for _, fd := range a.Fields {
		ff := formField{field: fd}
		if fd.Type == dispatch.Choice || fd.Type == dispatch.Ref {
			opts, err := d.Options(fd, id)
			if err != nil {
				return nil, err
			}
			ff.choose = true
			ff.options = opts
			for i, o := range opts {
				if o.Value == fd.Default {
					ff.choice = i
				}
			}
		} else {
			ti := textinput.New()
			ti.Placeholder = fd.Label
			ti.CharLimit = 64
			ti.SetValue(fd.Default)
			if fd.Type == dispatch.Secret {
				ti.EchoMode = textinput.EchoPassword
			}
			ff.input = ti
		}
		f.fields = append(f.fields, ff)
	}
	f.focusField(0)
	return f, nil
}

func (f *actionForm) focusField(i int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	i = (i + len(f.fields)) % len(f.fields)
	if cur := &f.fields[f.focus]; !cur.choose {
		cur.input.Blur()
	}
	f.focus = i
	if next := &f.fields[i]; !next.choose {
		return next.input.Focus()
	}
	return nil
}

// values returns the raw inputs keyed by field name.
func (f *actionForm) values() map[string]string {
	out := make(map[string]string, len(f.fields))
	for _, ff := range f.fields {
		switch {
		case ff.choose && len(ff.options) > 0:
			out[ff.field.Name] = ff.options[ff.choice].Value
		case ff.choose:
			out[ff.field.Name] = ""
		default:
			out[ff.field.Name] = ff.input.Value()
		}
	}
	return out
}

// update handles a key while the form has focus. It reports submit when
// enter was pressed.
func (f *actionForm) update(msg tea.KeyMsg) (submit bool, cmd tea.Cmd) {
	if f.busy {
		return false, nil
	}
	km := FormKeyMap()
	switch msg.String() {
	case "enter":
		return true, nil
	case "tab", "down":
		return false, f.focusField(f.focus + 1)
	case "shift+tab", "up":
		return false, f.focusField(f.focus - 1)
	}
	if len(f.fields) == 0 {
		return false, nil
	}
	cur := &f.fields[f.focus]
	if cur.choose {
		if len(cur.options) > 0 && key.Matches(msg, km.Cycle) {
			step := 1
			if msg.String() == "left" {
				step = -1
			}
			cur.choice = (cur.choice + step + len(cur.options)) % len(cur.options)
		}
		return false, nil
	}
	cur.input, cmd = cur.input.Update(msg)
	f.err = ""
	return false, cmd
}

// title is the form heading, e.g. "rune: equip-to-equipment".
func (f *actionForm) title() string {
	return fmt.Sprintf("%s: %s", f.action.Kind, f.action.Name)
}

func (f *actionForm) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(f.title()) + "\n\n")
	if len(f.fields) == 0 {
		b.WriteString(mutedStyle.Render("No input needed. Press enter to confirm.") + "\n")
	}
	for i, ff := range f.fields {
		prefix := "  "
		if i == f.focus {
			prefix = CursorMarker
		}
		b.WriteString(prefix + headingStyle.Render(ff.field.Label) + "\n")
		switch {
		case ff.choose && len(ff.options) == 0:
			b.WriteString("    " + mutedStyle.Render("nothing to choose") + "\n")
		case ff.choose:
			fmt.Fprintf(&b, "    ‹ %s › %s\n", ff.options[ff.choice].Label,
				mutedStyle.Render(fmt.Sprintf("%d/%d", ff.choice+1, len(ff.options))))
		default:
			b.WriteString("    " + ff.input.View() + "\n")
		}
	}
	if f.busy {
		b.WriteString("\n" + mutedStyle.Render("Working..."))
	}
	if f.err != "" {
		b.WriteString("\n" + errorStyle.Render(f.err))
	}
	return b.String()
}
