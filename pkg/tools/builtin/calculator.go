package builtin

import (
	"context"
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"math"
	"strconv"

	"github.com/harunnryd/voxa/pkg/tools"
)

func Calculator() tools.Tool {
	return tools.Tool{
		Schema: tools.Schema{
			Name:        "calculate",
			Description: "Perform mathematical calculations. Use this when the user asks to calculate or solve math problems.",
			Parameters: []tools.Parameter{
				{Name: "expression", Type: tools.TypeString, Description: "Mathematical expression to evaluate, e.g., '2 + 2', '10 * 5', 'pow(2, 8)'", Required: true},
			},
		},
		Handler: func(_ context.Context, args tools.Args) tools.Result {
			expr := args.String("expression", "")
			v, err := Evaluate(expr)
			if err != nil {
				res := tools.Failure(tools.KindExecution, "%v", err)
				res.Data = map[string]any{"expression": expr}
				return res
			}
			return tools.Success(map[string]any{"expression": expr, "result": v})
		},
	}
}

// Evaluate computes an arithmetic expression. It understands numbers,
// + - * / % **, parentheses, list literals and the functions abs, round,
// min, max, sum and pow. Nothing else is accepted.
func Evaluate(expr string) (float64, error) {
	p, err := newCalcParser(expr)
	if err != nil {
		return 0, err
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.tok != token.EOF {
		return 0, fmt.Errorf("unexpected %s", p.describe())
	}
	n, err := v.number()
	if err != nil {
		return 0, err
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, errors.New("result is not a finite number")
	}
	return n, nil
}

type calcValue struct {
	num  float64
	list []float64
	many bool
}

func (v calcValue) number() (float64, error) {
	if v.many {
		return 0, errors.New("a list is only allowed as a function argument")
	}
	return v.num, nil
}

type calcToken struct {
	pos token.Pos
	tok token.Token
	lit string
}

type calcParser struct {
	toks []calcToken
	pos  int
	tok  token.Token
	lit  string
}

func newCalcParser(src string) (*calcParser, error) {
	var s scanner.Scanner
	var scanErr error
	fset := token.NewFileSet()
	file := fset.AddFile("expression", fset.Base(), len(src))
	s.Init(file, []byte(src), func(_ token.Position, msg string) {
		if scanErr == nil {
			scanErr = errors.New(msg)
		}
	}, scanner.ScanComments)

	p := &calcParser{}
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		if tok == token.COMMENT {
			return nil, errors.New("unsupported operator //")
		}
		p.toks = append(p.toks, calcToken{pos: pos, tok: tok, lit: lit})
	}
	if scanErr != nil {
		return nil, scanErr
	}
	if len(p.toks) == 0 {
		return nil, errors.New("empty expression")
	}
	p.toks = append(p.toks, calcToken{tok: token.EOF})
	p.load()
	return p, nil
}

func (p *calcParser) load() {
	p.tok, p.lit = p.toks[p.pos].tok, p.toks[p.pos].lit
}

func (p *calcParser) next() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	p.load()
}

// isPow reports whether the scanner produced "**" as two adjacent '*'.
func (p *calcParser) isPow() bool {
	if p.tok != token.MUL || p.pos+1 >= len(p.toks) {
		return false
	}
	next := p.toks[p.pos+1]
	return next.tok == token.MUL && next.pos == p.toks[p.pos].pos+1
}

func (p *calcParser) describe() string {
	if p.tok == token.EOF {
		return "end of expression"
	}
	if p.lit != "" {
		return strconv.Quote(p.lit)
	}
	return strconv.Quote(p.tok.String())
}

func (p *calcParser) expect(tok token.Token) error {
	if p.tok != tok {
		return fmt.Errorf("expected %q, found %s", tok.String(), p.describe())
	}
	p.next()
	return nil
}

// expr := term (('+' | '-') term)*
func (p *calcParser) expr() (calcValue, error) {
	left, err := p.term()
	if err != nil {
		return calcValue{}, err
	}
	for p.tok == token.ADD || p.tok == token.SUB {
		op := p.tok
		p.next()
		right, err := p.term()
		if err != nil {
			return calcValue{}, err
		}
		a, b, err := operands(left, right)
		if err != nil {
			return calcValue{}, err
		}
		if op == token.ADD {
			left = calcValue{num: a + b}
		} else {
			left = calcValue{num: a - b}
		}
	}
	return left, nil
}

// term := unary (('*' | '/' | '%') unary)*
func (p *calcParser) term() (calcValue, error) {
	left, err := p.unary()
	if err != nil {
		return calcValue{}, err
	}
	for (p.tok == token.MUL && !p.isPow()) || p.tok == token.QUO || p.tok == token.REM {
		op := p.tok
		p.next()
		right, err := p.unary()
		if err != nil {
			return calcValue{}, err
		}
		a, b, err := operands(left, right)
		if err != nil {
			return calcValue{}, err
		}
		switch op {
		case token.MUL:
			left = calcValue{num: a * b}
		case token.QUO:
			if b == 0 {
				return calcValue{}, errors.New("division by zero")
			}
			left = calcValue{num: a / b}
		case token.REM:
			if b == 0 {
				return calcValue{}, errors.New("modulo by zero")
			}
			// floored modulo, sign follows the divisor
			m := math.Mod(a, b)
			if m != 0 && (m < 0) != (b < 0) {
				m += b
			}
			left = calcValue{num: m}
		}
	}
	return left, nil
}

// unary := ('+' | '-') unary | power
func (p *calcParser) unary() (calcValue, error) {
	if p.tok == token.ADD || p.tok == token.SUB {
		neg := p.tok == token.SUB
		p.next()
		v, err := p.unary()
		if err != nil {
			return calcValue{}, err
		}
		n, err := v.number()
		if err != nil {
			return calcValue{}, err
		}
		if neg {
			n = -n
		}
		return calcValue{num: n}, nil
	}
	return p.power()
}

// power := primary ('**' unary)?
func (p *calcParser) power() (calcValue, error) {
	base, err := p.primary()
	if err != nil {
		return calcValue{}, err
	}
	if !p.isPow() {
		return base, nil
	}
	p.next()
	p.next()
	exp, err := p.unary()
	if err != nil {
		return calcValue{}, err
	}
	a, b, err := operands(base, exp)
	if err != nil {
		return calcValue{}, err
	}
	return calcValue{num: math.Pow(a, b)}, nil
}

func (p *calcParser) primary() (calcValue, error) {
	switch p.tok {
	case token.INT:
		lit := p.lit
		p.next()
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return calcValue{}, fmt.Errorf("bad number %q", lit)
		}
		return calcValue{num: float64(n)}, nil
	case token.FLOAT:
		lit := p.lit
		p.next()
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return calcValue{}, fmt.Errorf("bad number %q", lit)
		}
		return calcValue{num: n}, nil
	case token.LPAREN:
		p.next()
		v, err := p.expr()
		if err != nil {
			return calcValue{}, err
		}
		return v, p.expect(token.RPAREN)
	case token.LBRACK:
		p.next()
		items, err := p.list(token.RBRACK)
		if err != nil {
			return calcValue{}, err
		}
		return calcValue{list: items, many: true}, nil
	case token.IDENT:
		name := p.lit
		fn, ok := calcFuncs[name]
		if !ok {
			return calcValue{}, fmt.Errorf("name %q is not defined", name)
		}
		p.next()
		if err := p.expect(token.LPAREN); err != nil {
			return calcValue{}, err
		}
		args, err := p.args()
		if err != nil {
			return calcValue{}, err
		}
		n, err := fn(args)
		if err != nil {
			return calcValue{}, fmt.Errorf("%s: %w", name, err)
		}
		return calcValue{num: n}, nil
	default:
		return calcValue{}, fmt.Errorf("unexpected %s", p.describe())
	}
}

// list parses comma separated numbers up to the closing token.
func (p *calcParser) list(end token.Token) ([]float64, error) {
	var out []float64
	for p.tok != end {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		n, err := v.number()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	return out, p.expect(end)
}

func (p *calcParser) args() ([]calcValue, error) {
	var out []calcValue
	for p.tok != token.RPAREN {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	return out, p.expect(token.RPAREN)
}

func operands(a, b calcValue) (float64, float64, error) {
	x, err := a.number()
	if err != nil {
		return 0, 0, err
	}
	y, err := b.number()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

var calcFuncs = map[string]func([]calcValue) (float64, error){
	"abs": func(args []calcValue) (float64, error) {
		x, err := scalars(args, 1, 1)
		if err != nil {
			return 0, err
		}
		return math.Abs(x[0]), nil
	},
	"round": func(args []calcValue) (float64, error) {
		x, err := scalars(args, 1, 2)
		if err != nil {
			return 0, err
		}
		digits := 0.0
		if len(x) == 2 {
			digits = x[1]
		}
		scale := math.Pow(10, digits)
		return math.RoundToEven(x[0]*scale) / scale, nil
	},
	"pow": func(args []calcValue) (float64, error) {
		x, err := scalars(args, 2, 2)
		if err != nil {
			return 0, err
		}
		return math.Pow(x[0], x[1]), nil
	},
	"min": func(args []calcValue) (float64, error) {
		x, err := flatten(args)
		if err != nil {
			return 0, err
		}
		out := x[0]
		for _, v := range x[1:] {
			out = math.Min(out, v)
		}
		return out, nil
	},
	"max": func(args []calcValue) (float64, error) {
		x, err := flatten(args)
		if err != nil {
			return 0, err
		}
		out := x[0]
		for _, v := range x[1:] {
			out = math.Max(out, v)
		}
		return out, nil
	},
	"sum": func(args []calcValue) (float64, error) {
		var total float64
		for _, a := range args {
			if a.many {
				for _, v := range a.list {
					total += v
				}
				continue
			}
			total += a.num
		}
		return total, nil
	},
}

func scalars(args []calcValue, lo, hi int) ([]float64, error) {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return nil, fmt.Errorf("expected %d arguments, got %d", lo, len(args))
		}
		return nil, fmt.Errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		n, err := a.number()
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// flatten accepts either a single list or several numbers.
func flatten(args []calcValue) ([]float64, error) {
	var out []float64
	if len(args) == 1 && args[0].many {
		out = args[0].list
	} else {
		for _, a := range args {
			n, err := a.number()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("expected at least one value")
	}
	return out, nil
}
