package jinja

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/date"
	"github.com/samber/lo"
)

type Renderer struct {
	context         *exec.Context
	queryRenderLock *sync.Mutex
	vars            *varLookup
}

func init() { //nolint: gochecknoinits
	gonja.DefaultConfig.StrictUndefined = true
}

var (
	missingVariableRegex = regexp.MustCompile(`name\s+"([^"]+)"`)
	locationRegex        = regexp.MustCompile(`\(Line: \d+ Col: \d+, near ".*?"\)`)
)

type Context map[string]any

func NewRenderer(context Context) *Renderer {
	return &Renderer{
		context:         exec.NewContext(context),
		queryRenderLock: &sync.Mutex{},
	}
}

// NewSnapshotRenderer returns a renderer for snapshot definitions. Templates can read project variables through
// var('name') or var('name', default), the whole variable map as vars, the target schema and the run start time.
func NewSnapshotRenderer(vars map[string]any, targetSchema string, runStartedAt time.Time) *Renderer {
	lookup := &varLookup{vars: vars}

	return &Renderer{
		context: exec.NewContext(map[string]any{
			"var":            lookup.get,
			"vars":           vars,
			"target_schema":  targetSchema,
			"run_started_at": date.Format(runStartedAt),
		}),
		queryRenderLock: &sync.Mutex{},
		vars:            lookup,
	}
}

type varLookup struct {
	vars    map[string]any
	mu      sync.Mutex
	missing []string
}

// get uses variadic arguments to support the optional default value.
func (l *varLookup) get(args ...interface{}) interface{} {
	if len(args) == 0 {
		return ""
	}

	name, _ := args[0].(string)
	if v, ok := l.vars[name]; ok {
		return v
	}
	if len(args) > 1 {
		return args[1]
	}

	l.mu.Lock()
	l.missing = append(l.missing, name)
	l.mu.Unlock()
	return ""
}

func (l *varLookup) takeMissing() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	missing := lo.Uniq(l.missing)
	l.missing = nil
	return missing
}

func (r *Renderer) Render(query string) (string, error) {
	r.queryRenderLock.Lock()
	defer r.queryRenderLock.Unlock()

	tpl, err := gonja.FromString(query)
	if err != nil {
		customError := findParserErrorType(err)
		if customError == "" {
			return "", errors.Wrap(err, "failed to parse the template")
		}

		return "", errors.New(customError)
	}

	out, err := tpl.ExecuteToString(r.context)
	if err != nil {
		customError := findRenderErrorType(err)
		if customError == "" {
			return "", errors.Wrap(err, "failed to render the template")
		}

		return "", errors.New(customError)
	}

	if r.vars != nil {
		if missing := r.vars.takeMissing(); len(missing) > 0 {
			return "", errors.Errorf("missing variable '%s', pass it with --var or define it under 'vars' in the project", strings.Join(missing, "', '"))
		}
	}

	return out, nil
}

func findRenderErrorType(err error) string {
	message := err.Error()
	errorBits := strings.Split(message, ": ")
	innermostErr := errorBits[len(errorBits)-1]

	if strings.HasPrefix(innermostErr, "filter '") && strings.HasSuffix(innermostErr, "' not found") {
		return innermostErr
	} else if strings.HasPrefix(innermostErr, "Unable to evaluate name ") {
		match := missingVariableRegex.FindStringSubmatch(innermostErr)
		if len(match) == 2 {
			return "missing variable '" + match[1] + "'"
		}

		return innermostErr
	}

	return ""
}

func findParserErrorType(err error) string {
	message := err.Error()

	if strings.Contains(message, "Unexpected EOF, expected tag else or endfor") {
		match := locationRegex.FindString(message)
		return "missing 'endfor' at " + match
	} else if strings.Contains(message, "Unexpected EOF, expected tag elif or else or endif") {
		match := locationRegex.FindString(message)
		return "missing end of the 'if' condition at " + match + ", did you forget to add 'endif'?"
	}

	return ""
}
