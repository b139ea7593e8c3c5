package execguard

import "strings"

// StructuredCommand is the tokenized form of an argument vector: the
// program, its flags, its options with attached values, and its positional
// arguments in order. It is request-scoped and not retained by the engine.
type StructuredCommand struct {
	Program string
	Flags   []Flag
	Opts    []Opt
	Args    []Arg
}

// Tokenize splits a raw argument vector into a StructuredCommand.
//
// argv[0] is the program. A subsequent token starting with "-" is an option
// when it carries an attached "=value", otherwise a flag. Everything else is
// a positional argument, recorded in order with a Literal type; the
// evaluator annotates types from the resolved rule. A bare "--" terminates
// flag parsing. Tokenize fails with a ParseError on an empty vector.
func Tokenize(argv []string) (*StructuredCommand, error) {
	if len(argv) == 0 {
		return nil, &ParseError{Reason: "empty argument vector"}
	}
	if argv[0] == "" {
		return nil, &ParseError{Reason: "empty program name"}
	}

	cmd := &StructuredCommand{Program: argv[0]}
	positionalOnly := false
	for _, tok := range argv[1:] {
		switch {
		case positionalOnly:
			cmd.appendArg(tok)
		case tok == "--":
			positionalOnly = true
		case len(tok) > 1 && tok[0] == '-':
			if name, value, ok := strings.Cut(tok, "="); ok {
				cmd.Opts = append(cmd.Opts, Opt{Name: name, Value: value})
			} else {
				cmd.Flags = append(cmd.Flags, Flag{Name: tok})
			}
		default:
			// Includes bare "-" (conventionally stdin).
			cmd.appendArg(tok)
		}
	}
	return cmd, nil
}

func (c *StructuredCommand) appendArg(value string) {
	c.Args = append(c.Args, Arg{Index: len(c.Args), Type: ArgTypeLiteral, Value: value})
}
