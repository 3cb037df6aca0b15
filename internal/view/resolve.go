package view

import (
	"context"
	"regexp"
	"strings"

	"voxelgpt/internal/llm"
	"voxelgpt/internal/logging"
	"voxelgpt/internal/prompt"
)

// ResolveName maps a model-produced class or tag name onto the closed
// allowed set. Precedence: exact, case-insensitive, prefix, then a
// semantic-match chain. The boolean reports success; on failure the
// original name is returned and the caller surfaces a warning.
func ResolveName(ctx context.Context, client llm.Client, name string, allowed []string) (string, bool) {
	if len(allowed) == 0 {
		return name, false
	}

	for _, cand := range allowed {
		if cand == name {
			return cand, true
		}
	}

	lower := strings.ToLower(name)
	for _, cand := range allowed {
		if strings.ToLower(cand) == lower {
			logging.Assembler("resolved %q case-insensitively to %q", name, cand)
			return cand, true
		}
	}

	for _, cand := range allowed {
		cl := strings.ToLower(cand)
		if strings.HasPrefix(cl, lower) || strings.HasPrefix(lower, cl) {
			logging.Assembler("resolved %q by prefix to %q", name, cand)
			return cand, true
		}
	}

	if client != nil {
		if match, ok := semanticMatch(ctx, client, name, allowed); ok {
			logging.Assembler("resolved %q semantically to %q", name, match)
			return match, true
		}
	}

	logging.Get(logging.CategoryAssembler).Warn("could not resolve %q against %d candidates", name, len(allowed))
	return name, false
}

// semanticMatch asks the model to pick a replacement from the allowed
// set. Only answers that are verbatim members of the set count.
func semanticMatch(ctx context.Context, client llm.Client, name string, allowed []string) (string, bool) {
	rendered, err := prompt.Render("semantic_replace", map[string]interface{}{
		"Term":       name,
		"Candidates": allowed,
	})
	if err != nil {
		return "", false
	}

	raw, err := client.Complete(ctx, rendered)
	if err != nil {
		return "", false
	}

	answer := strings.Trim(strings.TrimSpace(raw), "`\"'")
	if strings.EqualFold(answer, "none") {
		return "", false
	}
	for _, cand := range allowed {
		if cand == answer {
			return cand, true
		}
	}
	return "", false
}

var stringLitRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'`)

// resolveFilterClasses rewrites quoted class names inside a filter
// source against the allowed class set. Unresolved names are left in
// place and reported.
func resolveFilterClasses(ctx context.Context, client llm.Client, source string, allowed []string) (string, []string) {
	if len(allowed) == 0 {
		return source, nil
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}

	var unresolved []string
	var sb strings.Builder
	last := 0
	for _, loc := range stringLitRe.FindAllStringIndex(source, -1) {
		start, end := loc[0], loc[1]
		sb.WriteString(source[last:start])
		lit := source[start:end]
		name := lit[1 : len(lit)-1]

		// Literals inside F(...) are field paths, not class names.
		isFieldRef := strings.HasSuffix(strings.TrimSpace(source[:start]), "F(")
		if isFieldRef || allowedSet[name] {
			sb.WriteString(lit)
		} else if resolved, ok := ResolveName(ctx, client, name, allowed); ok {
			sb.WriteString(lit[:1] + resolved + lit[len(lit)-1:])
		} else {
			unresolved = append(unresolved, name)
			sb.WriteString(lit)
		}
		last = end
	}
	sb.WriteString(source[last:])
	return sb.String(), unresolved
}
