package misc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type OptionKind int

const (
	INT OptionKind = iota
	STRING
)

type Option struct {
	kind          OptionKind
	name          string
	default_value string
	help_msg      string
}

// CommandLineParser holds the registered option table and, once Parse has been
// called, the arguments actually given on the command line. Parameter lookups
// fall back to the registered default when the argument was not set, which
// also makes an unparsed parser usable in tests.
type CommandLineParser struct {
	options map[string]*Option
	order   []string
	args    map[string]string
	raws    []string
}

func (this *CommandLineParser) Init() {
	this.options = make(map[string]*Option)
	this.order = make([]string, 0)
	this.args = make(map[string]string)
	this.raws = make([]string, 0)
}

func (this *CommandLineParser) AddOption(kind OptionKind, name string, default_value string, help_msg string) {
	if _, found := this.options[name]; found {
		err := errors.New("option is already registered: " + name)
		panic(err)
	}

	option := new(Option)
	option.kind = kind
	option.name = name
	option.default_value = default_value
	option.help_msg = help_msg

	this.options[name] = option
	this.order = append(this.order, name)
}

func (this *CommandLineParser) Parse(args []string) {
	this.raws = append(this.raws, args...)

	i := 1
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if eq := strings.Index(name, "="); eq >= 0 {
			this.args[name[:eq]] = name[eq+1:]
			i++
			continue
		}

		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			this.args[name] = args[i+1]
			i += 2
		} else {
			this.args[name] = ""
			i++
		}
	}
}

func (this *CommandLineParser) IsArgSet(name string) bool {
	_, found := this.args[name]
	return found
}

func (this *CommandLineParser) IntParameter(name string) int64 {
	value := this.rawParameter(name, INT)

	parsed, parse_err := strconv.ParseInt(value, 10, 64)
	if parse_err != nil {
		err := errors.New("option is not an integer: " + name + "=" + value)
		panic(err)
	}
	return parsed
}

func (this *CommandLineParser) StringParameter(name string) string {
	return this.rawParameter(name, STRING)
}

func (this *CommandLineParser) rawParameter(name string, kind OptionKind) string {
	option, found := this.options[name]
	if !found {
		err := errors.New("option is not registered: " + name)
		panic(err)
	}
	if option.kind != kind {
		err := errors.New("option kind mismatch: " + name)
		panic(err)
	}

	if value, set := this.args[name]; set && value != "" {
		return value
	}
	return option.default_value
}

func (this *CommandLineParser) StringifyHelpMsgs() string {
	var builder strings.Builder
	for _, name := range this.order {
		option := this.options[name]
		builder.WriteString(fmt.Sprintf("-%s (%s, default: %s)\n", option.name, stringifyOptionKind(option.kind), option.default_value))
		builder.WriteString(fmt.Sprintf("\t%s\n", option.help_msg))
	}
	return builder.String()
}

func (this *CommandLineParser) StringifyArgs() string {
	return strings.Join(this.raws, " ")
}

func (this *CommandLineParser) StringifyOptions() string {
	names := make([]string, 0, len(this.options))
	for name := range this.options {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		option := this.options[name]
		value := option.default_value
		if arg, set := this.args[name]; set && arg != "" {
			value = arg
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, value))
	}
	return strings.Join(lines, "\n")
}

func stringifyOptionKind(kind OptionKind) string {
	switch kind {
	case INT:
		return "INT"
	case STRING:
		return "STRING"
	default:
		err := errors.New("unknown option kind")
		panic(err)
	}
}
