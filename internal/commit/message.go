package commit

import (
	"fmt"
	"strings"

	"github.com/controlvector/cv-core/internal/model"
)

// CommitMessage is the deterministic, template-generated conventional
// commit message produced from a CommitAnalysis, per spec.md §4.7's
// generateTemplateMessage contract and §6's output template. AI-assisted
// message generation is a separate, out-of-scope collaborator; this is the
// fallback template used when none is configured.
type CommitMessage struct {
	Subject string // "<type>(<scope>): <imperative subject>", <= 72 chars
	Body    string // optional: files/symbols added/modified/removed
	Footer  string // optional: "BREAKING CHANGE: ..."
}

const maxSubjectLen = 72

// String renders the message in the layout spec.md §6 names: subject line,
// a blank line, an optional body, a blank line, an optional footer.
func (m CommitMessage) String() string {
	var b strings.Builder
	b.WriteString(m.Subject)
	if m.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Body)
	}
	if m.Footer != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Footer)
	}
	return b.String()
}

// GenerateTemplateMessage implements spec.md §4.7's generateTemplateMessage:
// a deterministic conventional-commit message built from an already-computed
// CommitAnalysis, with no AI provider involved.
func GenerateTemplateMessage(a model.CommitAnalysis) CommitMessage {
	prefix := string(a.Kind)
	if a.Scope != "" {
		prefix = fmt.Sprintf("%s(%s)", a.Kind, a.Scope)
	}
	subject := fmt.Sprintf("%s: %s", prefix, subjectSummary(a))
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}

	var bodyLines []string
	if len(a.SymbolsAdded) > 0 {
		bodyLines = append(bodyLines, "Added: "+strings.Join(a.SymbolsAdded, ", "))
	}
	if len(a.SymbolsModified) > 0 {
		bodyLines = append(bodyLines, "Modified: "+strings.Join(a.SymbolsModified, ", "))
	}
	if len(a.SymbolsDeleted) > 0 {
		bodyLines = append(bodyLines, "Removed: "+strings.Join(a.SymbolsDeleted, ", "))
	}
	if len(a.FilesChanged) > 0 {
		bodyLines = append(bodyLines, "Files: "+strings.Join(a.FilesChanged, ", "))
	}

	var footer string
	if a.Breaking {
		reasons := make([]string, 0, len(a.BreakingChanges))
		for _, bc := range a.BreakingChanges {
			reasons = append(reasons, fmt.Sprintf("%s %s", bc.QualifiedName, bc.Reason))
		}
		footer = "BREAKING CHANGE: " + strings.Join(reasons, "; ")
	}

	return CommitMessage{Subject: subject, Body: strings.Join(bodyLines, "\n"), Footer: footer}
}

// subjectSummary picks the imperative subject body (after "<type>(<scope>): ")
// from whichever symbol bucket dominates the change.
func subjectSummary(a model.CommitAnalysis) string {
	switch {
	case len(a.SymbolsDeleted) > 0 && len(a.SymbolsAdded) == 0 && len(a.SymbolsModified) == 0:
		return fmt.Sprintf("remove %d symbol(s)", len(a.SymbolsDeleted))
	case len(a.SymbolsAdded) > 0 && len(a.SymbolsModified) == 0 && len(a.SymbolsDeleted) == 0:
		return fmt.Sprintf("add %d symbol(s)", len(a.SymbolsAdded))
	case len(a.SymbolsModified) > 0:
		return fmt.Sprintf("update %d symbol(s)", len(a.SymbolsModified))
	default:
		return fmt.Sprintf("update %d file(s)", len(a.FilesChanged))
	}
}
