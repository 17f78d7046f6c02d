// Package extract reads game signals out of a snapshot of visible page text.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/verte-zerg/zetatrack/internal/model"
)

// Node is a visible text node in document order.
type Node struct {
	Text   string
	Height float64
}

// Snapshot is the visible state of the game page at one instant.
type Snapshot struct {
	Nodes []Node
	// Selected maps a countdown selector to the text of its first match.
	Selected map[string]string
	Input    string
}

// CountdownSelectors are queried, in order, before the fallback text scan.
var CountdownSelectors = []string{
	"#game .left",
	"span.left",
	"#game span:first-child",
	"body > div:nth-child(2) > span:first-child",
}

const (
	maxProblemLen   = 20
	maxCountdownLen = 100
	maxCountdown    = 300
)

var (
	problemRe    = regexp.MustCompile(`(\d+\s*[+\-×÷*/]\s*\d+)\s*=`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	scorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Score:\s*(\d+)`),
		regexp.MustCompile(`Final score:\s*(\d+)`),
		regexp.MustCompile(`Your final score:\s*(\d+)`),
	}

	secondsLeftRe = regexp.MustCompile(`(?i)Seconds left:\s*(\d+)`)
	timeLabelRe   = regexp.MustCompile(`(?i)Time:\s*(\d+)`)
	secondsRe     = regexp.MustCompile(`(?i)(\d+)\s*seconds`)
	clockRe       = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// Problem returns the first visible problem expression, or false when none is on screen.
func Problem(s Snapshot) (string, bool) {
	for _, node := range s.Nodes {
		if node.Height <= 0 {
			continue
		}
		m := problemRe.FindStringSubmatch(node.Text)
		if m == nil {
			continue
		}
		expr := strings.TrimSpace(whitespaceRe.ReplaceAllString(m[1], " "))
		if len([]rune(expr)) >= maxProblemLen {
			continue
		}
		return expr, true
	}
	return "", false
}

// Score returns the highest labelled score across all nodes.
func Score(s Snapshot) (int, bool) {
	best := -1
	for _, node := range s.Nodes {
		for _, re := range scorePatterns {
			m := re.FindStringSubmatch(node.Text)
			if m == nil {
				continue
			}
			if v, err := strconv.Atoi(m[1]); err == nil && v > best {
				best = v
			}
			break
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// Countdown returns the seconds remaining in the game.
func Countdown(s Snapshot) (int, bool) {
	for _, sel := range CountdownSelectors {
		text, ok := s.Selected[sel]
		if !ok {
			continue
		}
		if m := secondsLeftRe.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return v, true
			}
		}
	}

	for _, node := range s.Nodes {
		text := strings.TrimSpace(node.Text)
		if text == "" || len([]rune(text)) >= maxCountdownLen {
			continue
		}
		if v, ok := countdownFromText(text); ok {
			return v, true
		}
	}
	return 0, false
}

// countdownFromText applies the first matching pattern only; an out of range
// value disqualifies the whole node.
func countdownFromText(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{secondsLeftRe, timeLabelRe, secondsRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return v, inCountdownRange(v)
	}
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	v := minutes*60 + seconds
	return v, inCountdownRange(v)
}

func inCountdownRange(v int) bool {
	return v >= 0 && v <= maxCountdown
}

// OperationOf classifies a problem expression by its first operator in priority order.
func OperationOf(question string) model.OperationType {
	switch {
	case strings.Contains(question, "+"):
		return model.OpAddition
	case strings.Contains(question, "-"):
		return model.OpSubtraction
	case strings.ContainsAny(question, "×*"):
		return model.OpMultiplication
	case strings.ContainsAny(question, "÷/"):
		return model.OpDivision
	default:
		return model.OpUnknown
	}
}
