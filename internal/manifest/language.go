package manifest

import (
	"fmt"
	"strings"
)

// Language is the closed set of supported source languages. Each value maps
// to a compile command template, with substitution points $SOURCE and
// $OUTPUT, and a run command template, with the substitution point $OUTPUT.
type Language string

const (
	LangCpp    Language = "cpp"
	LangPython Language = "python"
)

// compileTemplates mirrors the reference defaults: g++ for compiled
// languages, a no-op copy for interpreted ones so a uniform CompileStage can
// still "produce" solution.out.
var compileTemplates = map[Language]string{
	LangCpp:    "/usr/bin/g++ $SOURCE -o $OUTPUT -O2 -Wall -lm",
	LangPython: "/usr/bin/cp --update=none $SOURCE $OUTPUT",
}

// runTemplates mirrors Lang::run_command: the artifact produced by
// compilation is invoked directly for compiled languages, and via an
// interpreter for interpreted ones.
var runTemplates = map[Language]string{
	LangCpp:    "./$OUTPUT",
	LangPython: "/usr/bin/python3 $OUTPUT",
}

// UnmarshalYAML validates that the decoded string is a known language.
func (l *Language) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	lang := Language(strings.ToLower(s))
	if _, ok := compileTemplates[lang]; !ok {
		return fmt.Errorf("manifest: unknown language %q", s)
	}
	*l = lang
	return nil
}

// CompileCommand substitutes source/output into the compile template and
// token-splits it into a program plus arguments.
func (l Language) CompileCommand(source, output string) (string, []string, error) {
	return substituteAndSplit(compileTemplates, l, source, output)
}

// RunCommand substitutes the compiled artifact name into the run template.
func (l Language) RunCommand(artifact string) (string, []string, error) {
	tpl, ok := runTemplates[l]
	if !ok {
		return "", nil, fmt.Errorf("manifest: unknown language %q", l)
	}
	resolved := strings.ReplaceAll(tpl, "$OUTPUT", artifact)
	parts := strings.Fields(resolved)
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("manifest: empty run command for %q", l)
	}
	return parts[0], parts[1:], nil
}

func substituteAndSplit(templates map[Language]string, l Language, source, output string) (string, []string, error) {
	tpl, ok := templates[l]
	if !ok {
		return "", nil, fmt.Errorf("manifest: unknown language %q", l)
	}
	resolved := strings.ReplaceAll(tpl, "$SOURCE", source)
	resolved = strings.ReplaceAll(resolved, "$OUTPUT", output)
	parts := strings.Fields(resolved)
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("manifest: empty compile command for %q", l)
	}
	return parts[0], parts[1:], nil
}
