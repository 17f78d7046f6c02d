package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/verte-zerg/zetatrack/internal/extract"
)

const maxNodeText = 400

// installJS hooks the page once: a mutation observer flags page changes and input
// listeners queue answer values into window.__zetatrack.
const installJS = `() => {
	const w = window;
	if (w.__zetatrack) return false;
	const state = { mutated: true, inputs: [] };
	w.__zetatrack = state;
	const push = (target) => {
		if (!target || target.tagName !== 'INPUT') return;
		const value = target.value || '';
		if (value) state.inputs.push(value);
	};
	new MutationObserver(() => { state.mutated = true; }).observe(document.body || document.documentElement, {
		childList: true, subtree: true, characterData: true, attributes: true,
	});
	document.addEventListener('input', (ev) => push(ev.target), true);
	['keydown', 'keyup', 'change', 'paste'].forEach((type) => {
		document.addEventListener(type, (ev) => setTimeout(() => push(ev.target), 1), true);
	});
	return true;
}`

// drainJS returns and clears the queued events, or null when the page lost its hooks.
const drainJS = `() => {
	const state = window.__zetatrack;
	if (!state) return null;
	const out = { mutated: state.mutated, inputs: state.inputs, input: (` + inputLookup + `)() };
	state.mutated = false;
	state.inputs = [];
	return out;
}`

// inputLookup finds the answer field the same way for every script.
const inputLookup = `() => {
	const field = document.querySelector('input[type="text"]') ||
		document.querySelector('input[type="number"]') ||
		document.querySelector('input') ||
		document.querySelector('#answer');
	return field ? (field.value || '') : '';
}`

var snapshotJS = fmt.Sprintf(`(selectors) => {
	const nodes = [];
	for (const el of document.querySelectorAll('*')) {
		const text = (el.textContent || '').trim();
		if (!text) continue;
		nodes.push({ text: text.slice(0, %d), height: el.offsetHeight || 0 });
	}
	const selected = {};
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el) selected[sel] = (el.textContent || '').trim();
	}
	return { nodes, selected, input: (%s)() };
}`, maxNodeText, inputLookup)

// diagnosticsJS describes the answer field for debug logging.
const diagnosticsJS = `() => {
	const field = document.querySelector('input');
	if (!field) return { found: false };
	return { found: true, value: field.value || '', type: field.type || '', focused: document.activeElement === field };
}`

type wireNode struct {
	Text   string  `json:"text"`
	Height float64 `json:"height"`
}

type wireSnapshot struct {
	Nodes    []wireNode        `json:"nodes"`
	Selected map[string]string `json:"selected"`
	Input    string            `json:"input"`
}

type wireDrain struct {
	Mutated bool     `json:"mutated"`
	Inputs  []string `json:"inputs"`
	Input   string   `json:"input"`
}

type wireDiagnostics struct {
	Found   bool   `json:"found"`
	Value   string `json:"value"`
	Type    string `json:"type"`
	Focused bool   `json:"focused"`
}

func decodeSnapshot(raw []byte) (extract.Snapshot, error) {
	var wire wireSnapshot
	if err := json.Unmarshal(raw, &wire); err != nil {
		return extract.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	snap := extract.Snapshot{
		Nodes:    make([]extract.Node, 0, len(wire.Nodes)),
		Selected: wire.Selected,
		Input:    strings.TrimSpace(wire.Input),
	}
	for _, n := range wire.Nodes {
		snap.Nodes = append(snap.Nodes, extract.Node{Text: n.Text, Height: n.Height})
	}
	if snap.Selected == nil {
		snap.Selected = map[string]string{}
	}
	return snap, nil
}

// decodeDrain returns false when the page reported no hook state.
func decodeDrain(raw []byte) (wireDrain, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return wireDrain{}, false, nil
	}
	var d wireDrain
	if err := json.Unmarshal(raw, &d); err != nil {
		return wireDrain{}, false, fmt.Errorf("failed to decode page events: %w", err)
	}
	return d, true, nil
}

func decodeJSON(raw []byte, out any) error {
	if len(raw) == 0 {
		return errors.New("empty result")
	}
	return json.Unmarshal(raw, out)
}
