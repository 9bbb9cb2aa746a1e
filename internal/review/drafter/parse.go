package drafter

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
)

// draftResult is the parsed form of one model reply, before routing decides
// whether to escalate or discard it.
type draftResult struct {
	severity   model.Severity
	confidence float64
	body       string
	noIssue    bool
}

const (
	sectionNone = iota
	sectionSeverity
	sectionConfidence
	sectionComment
)

// parseDraftResponse reads the fixed "### Severity / ### Confidence /
// ### Comment" layout requested in the prompt. It expects exactly one of
// each section, since one target produces at most one draft.
func parseDraftResponse(raw string) (*draftResult, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &draftResult{severity: model.SeverityLow}
	var comment strings.Builder
	state := sectionNone

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch trimmed {
		case "### Severity":
			state = sectionSeverity
			continue
		case "### Confidence":
			state = sectionConfidence
			continue
		case "### Comment":
			state = sectionComment
			continue
		}

		switch state {
		case sectionSeverity:
			if trimmed != "" {
				result.severity = parseSeverity(trimmed)
				state = sectionNone
			}
		case sectionConfidence:
			if trimmed != "" {
				if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
					result.confidence = v
				}
				state = sectionNone
			}
		case sectionComment:
			comment.WriteString(line)
			comment.WriteString("\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.Parse, "review.drafter", "scan draft response", err)
	}

	result.body = strings.TrimSpace(comment.String())
	if result.body == "" {
		return nil, errs.New(errs.Parse, "review.drafter", "draft response missing ### Comment section")
	}
	result.noIssue = strings.EqualFold(result.body, "No issues found.")
	return result, nil
}

func parseSeverity(s string) model.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return model.SeverityHigh
	case "medium":
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
