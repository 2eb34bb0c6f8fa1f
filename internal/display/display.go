package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ranks in grid order, strongest first.
const gridRanks = "AKQJT98765432"

// Styles contains all styling for solver output rendering.
type Styles struct {
	Header    lipgloss.Style
	Cell      lipgloss.Style
	EmptyCell lipgloss.Style
	Bar       []lipgloss.Style
	BarLabel  lipgloss.Style
	Info      lipgloss.Style
}

// DefaultStyles returns the solver colour scheme. Bar styles cycle per
// action.
func DefaultStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true),
		Cell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Width(5),
		EmptyCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Width(5),
		Bar: []lipgloss.Style{
			lipgloss.NewStyle().Foreground(lipgloss.Color("#96CEB4")),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#FFEAA7")),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1")),
		},
		BarLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true).
			Width(14),
		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
	}
}

// Renderer renders solved strategy output for the CLI.
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer with the default styles.
func NewRenderer() *Renderer {
	return &Renderer{styles: DefaultStyles()}
}

// HandClass reduces a two card combo string like "AsKd" to its hand class
// ("AKo", "AKs" or "AA"). Unparseable input comes back unchanged.
func HandClass(combo string) string {
	if len(combo) != 4 {
		return combo
	}
	r1, s1 := combo[0], combo[1]
	r2, s2 := combo[2], combo[3]
	i1 := strings.IndexByte(gridRanks, upper(r1))
	i2 := strings.IndexByte(gridRanks, upper(r2))
	if i1 < 0 || i2 < 0 {
		return combo
	}
	if i1 > i2 {
		i1, i2 = i2, i1
	}
	hi, lo := gridRanks[i1], gridRanks[i2]
	if hi == lo {
		return string([]byte{hi, lo})
	}
	if s1 == s2 {
		return string([]byte{hi, lo, 's'})
	}
	return string([]byte{hi, lo, 'o'})
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// RangeGrid renders per combo weights as the usual 13x13 hand grid.
// Weights for combos of the same class are summed; cells with no weight
// are dimmed.
func (r *Renderer) RangeGrid(title string, weights map[string]float64) string {
	byClass := make(map[string]float64)
	for combo, w := range weights {
		byClass[HandClass(combo)] += w
	}

	var b strings.Builder
	b.WriteString(r.styles.Header.Render(title))
	b.WriteString("\n")
	for i := 0; i < len(gridRanks); i++ {
		cells := make([]string, len(gridRanks))
		for j := 0; j < len(gridRanks); j++ {
			class := gridClass(i, j)
			if byClass[class] > 0 {
				cells[j] = r.styles.Cell.Render(class)
			} else {
				cells[j] = r.styles.EmptyCell.Render(class)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

// gridClass names the cell at row i, column j: pairs on the diagonal,
// suited hands above it, offsuit below.
func gridClass(i, j int) string {
	switch {
	case i == j:
		return string([]byte{gridRanks[i], gridRanks[j]})
	case i < j:
		return string([]byte{gridRanks[i], gridRanks[j], 's'})
	default:
		return string([]byte{gridRanks[j], gridRanks[i], 'o'})
	}
}

// StrategyBars renders one frequency bar per action, averaged over the
// hands in the strategy map weighted by the supplied range. A nil range
// weights every hand equally.
func (r *Renderer) StrategyBars(actions []string, strategy map[string][]float64, rangeWeights map[string]float64) string {
	freqs := make([]float64, len(actions))
	var total float64
	for combo, probs := range strategy {
		w := 1.0
		if rangeWeights != nil {
			w = rangeWeights[combo]
		}
		if w <= 0 {
			continue
		}
		for a := 0; a < len(actions) && a < len(probs); a++ {
			freqs[a] += w * probs[a]
		}
		total += w
	}
	if total > 0 {
		for a := range freqs {
			freqs[a] /= total
		}
	}

	const barWidth = 40
	var b strings.Builder
	for a, action := range actions {
		style := r.styles.Bar[a%len(r.styles.Bar)]
		filled := int(freqs[a]*barWidth + 0.5)
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		b.WriteString(r.styles.BarLabel.Render(action))
		b.WriteString(style.Render(bar))
		b.WriteString(fmt.Sprintf(" %5.1f%%\n", freqs[a]*100))
	}
	return b.String()
}

// HandStrategies renders the per hand strategy table, strongest classes
// first, one row per combo.
func (r *Renderer) HandStrategies(actions []string, strategy map[string][]float64) string {
	combos := make([]string, 0, len(strategy))
	for combo := range strategy {
		combos = append(combos, combo)
	}
	sort.Strings(combos)
	strength := func(combo string) int {
		if len(combo) != 4 {
			return len(gridRanks) * len(gridRanks)
		}
		return strings.IndexByte(gridRanks, upper(combo[0]))*len(gridRanks) + strings.IndexByte(gridRanks, upper(combo[2]))
	}
	sort.SliceStable(combos, func(i, j int) bool { return strength(combos[i]) < strength(combos[j]) })

	var b strings.Builder
	header := make([]string, len(actions)+1)
	header[0] = fmt.Sprintf("%-6s", "hand")
	for i, a := range actions {
		header[i+1] = fmt.Sprintf("%10s", a)
	}
	b.WriteString(r.styles.Header.Render(strings.Join(header, " ")))
	b.WriteString("\n")
	for _, combo := range combos {
		probs := strategy[combo]
		row := make([]string, len(actions)+1)
		row[0] = fmt.Sprintf("%-6s", combo)
		for a := range actions {
			v := 0.0
			if a < len(probs) {
				v = probs[a]
			}
			row[a+1] = fmt.Sprintf("%9.1f%%", v*100)
		}
		b.WriteString(r.styles.Info.Render(strings.Join(row, " ")))
		b.WriteString("\n")
	}
	return b.String()
}

// Node renders one dumped action node: the acting player, the aggregate
// action frequencies and the per hand table.
func (r *Renderer) Node(node map[string]any) (string, error) {
	nodeType, _ := node["node_type"].(string)
	if nodeType != "action_node" {
		return "", fmt.Errorf("node is a %s, expected an action node", nodeType)
	}

	actions := toStrings(node["actions"])
	player := toInt(node["player"])

	var b strings.Builder
	who := "IP"
	if player == 1 {
		who = "OOP"
	}
	b.WriteString(r.styles.Header.Render(fmt.Sprintf("%s to act", who)))
	b.WriteString("\n\n")

	strategy := extractStrategy(node)
	if strategy == nil {
		b.WriteString(r.styles.Info.Render("no trained strategy at this node"))
		b.WriteString("\n")
		return b.String(), nil
	}

	b.WriteString(r.StrategyBars(actions, strategy, nil))
	b.WriteString("\n")
	b.WriteString(r.HandStrategies(actions, strategy))
	return b.String(), nil
}

// extractStrategy pulls the per hand strategy out of a decoded dump node.
// JSON decoding leaves everything as map[string]any and []any.
func extractStrategy(node map[string]any) map[string][]float64 {
	wrapper, ok := node["strategy"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := wrapper["strategy"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]float64, len(raw))
	for combo, v := range raw {
		probs := toFloats(v)
		if probs != nil {
			out[combo] = probs
		}
	}
	return out
}

// ChildAt walks a decoded dump from node along a path of action names and
// dealt cards.
func ChildAt(node map[string]any, path []string) (map[string]any, error) {
	current := node
	for _, step := range path {
		var children map[string]any
		if c, ok := current["childrens"].(map[string]any); ok {
			children = c
		} else if c, ok := current["dealcards"].(map[string]any); ok {
			children = c
		} else {
			return nil, fmt.Errorf("node has no children to follow %q", step)
		}
		next, ok := children[step].(map[string]any)
		if !ok {
			keys := make([]string, 0, len(children))
			for k := range children {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("no child %q, have %s", step, strings.Join(keys, ", "))
		}
		current = next
	}
	return current, nil
}

func toStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toFloats(v any) []float64 {
	switch vv := v.(type) {
	case []float64:
		return vv
	case []any:
		out := make([]float64, 0, len(vv))
		for _, e := range vv {
			if f, ok := e.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

func toInt(v any) int {
	switch vv := v.(type) {
	case int:
		return vv
	case float64:
		return int(vv)
	}
	return 0
}
