package jinja

import (
	"strconv"
	"strings"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/date"
)

var Filters *exec.FilterSet

var pythonDateFormat = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%f", "000000",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
)

func init() { //nolint:gochecknoinits
	Filters = gonja.DefaultEnvironment.Filters
	if err := Filters.Register("add_days", addDays); err != nil {
		panic(err)
	}
	if err := Filters.Register("date_format", formatDate); err != nil {
		panic(err)
	}
}

func addDays(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
	if in.IsError() {
		return in
	}
	if p := params.ExpectArgs(1); p.IsError() {
		return exec.AsValue(errors.Wrap(p, "'add_days' accepts only a single argument"))
	}

	parsed, err := date.ParseTime(in.String())
	if err != nil {
		return exec.AsValue(errors.Wrap(err, "invalid date format"))
	}

	days := params.Args[0].String()
	daysInt, err := strconv.Atoi(days)
	if err != nil {
		return exec.AsValue(errors.Errorf("invalid number of days for add_days, it must be a valid integer, '%s' given", days))
	}

	return exec.AsValue(date.Format(parsed.AddDate(0, 0, daysInt)))
}

func formatDate(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
	if in.IsError() {
		return in
	}
	if p := params.ExpectArgs(1); p.IsError() {
		return exec.AsValue(errors.Wrap(p, "'date_format' accepts only a single argument"))
	}

	stringInput := in.String()
	parsed, err := date.ParseTime(stringInput)
	if err != nil {
		return exec.AsValue(errors.Errorf("invalid date format, %s given", stringInput))
	}

	return exec.AsValue(parsed.Format(pythonDateFormat.Replace(params.Args[0].String())))
}
