package ai

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
)

// TreeLoader holds named behaviour trees built through a Registry.
type TreeLoader struct {
	registry *Registry

	mu    sync.RWMutex
	trees map[string]TreeNode
	order []string
}

// NewTreeLoader returns an empty loader building nodes with registry, or
// with the default registry if it is nil.
func NewTreeLoader(registry *Registry) *TreeLoader {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &TreeLoader{registry: registry, trees: make(map[string]TreeNode)}
}

// Registry returns the registry used to build nodes.
func (l *TreeLoader) Registry() *Registry { return l.registry }

// AddTree stores root under name. Names are unique.
func (l *TreeLoader) AddTree(name string, root TreeNode) error {
	if root == nil {
		return fmt.Errorf("behaviour %s: no root node", name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.trees[name]; ok {
		return fmt.Errorf("behaviour %s: %w", name, ErrAlreadyRegistered)
	}
	l.trees[name] = root
	l.order = append(l.order, name)
	return nil
}

// Tree returns the root of the named behaviour, or nil.
func (l *TreeLoader) Tree(name string) TreeNode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.trees[name]
}

// Names returns the behaviour names in load order.
func (l *TreeLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

// LoadFile parses a tree file and adds every behaviour in it.
func (l *TreeLoader) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.Load(path, f)
}

// LoadString parses src and adds every behaviour in it.
func (l *TreeLoader) LoadString(src string) error {
	return l.Load("<string>", strings.NewReader(src))
}

// Load parses a tree file. Nothing is added if any behaviour fails to build.
//
// The format is
//
//	# comment
//	behaviour NAME
//	    TypeExpr [name:NAME] [cond:CondExpr]
//	        TypeExpr ...
//
// where nesting is defined by indentation.
func (l *TreeLoader) Load(source string, r io.Reader) error {
	type frame struct {
		indent int
		node   TreeNode
	}
	type pending struct {
		name string
		root TreeNode
	}
	var (
		parsed  []pending
		current *pending
		stack   []frame
	)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimLeft(raw, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lineErr := func(err error) error {
			return fmt.Errorf("%s:%d: %w", source, lineNo, err)
		}
		if name, ok := strings.CutPrefix(trimmed, "behaviour "); ok {
			name = strings.TrimSpace(name)
			if name == "" {
				return lineErr(fmt.Errorf("%w: behaviour name expected", ErrParse))
			}
			parsed = append(parsed, pending{name: name})
			current = &parsed[len(parsed)-1]
			stack = stack[:0]
			continue
		}
		if current == nil {
			return lineErr(fmt.Errorf("%w: node outside of a behaviour", ErrParse))
		}
		node, err := l.parseNodeLine(trimmed)
		if err != nil {
			return lineErr(err)
		}
		indent := len(raw) - len(trimmed)
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			if current.root != nil {
				return lineErr(fmt.Errorf("%w: behaviour %s has more than one root", ErrParse, current.name))
			}
			current.root = node
		} else if parent := stack[len(stack)-1].node; !parent.AddChild(node) {
			return lineErr(fmt.Errorf("%w: %s does not accept child %s", ErrParse, parent.Name(), node.Name()))
		}
		stack = append(stack, frame{indent: indent, node: node})
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	var errs []error
	seen := make(map[string]bool, len(parsed))
	for _, p := range parsed {
		if p.root == nil {
			errs = append(errs, fmt.Errorf("%s: behaviour %s: %w: no nodes", source, p.name, ErrParse))
		}
		if seen[p.name] || l.Tree(p.name) != nil {
			errs = append(errs, fmt.Errorf("%s: behaviour %s: %w", source, p.name, ErrAlreadyRegistered))
		}
		seen[p.name] = true
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for _, p := range parsed {
		if err := l.AddTree(p.name, p.root); err != nil {
			return err
		}
	}
	return nil
}

func (l *TreeLoader) parseNodeLine(line string) (TreeNode, error) {
	fields := splitTopLevel(line)
	typ, name, cond := fields[0], "", ""
	for _, f := range fields[1:] {
		if v, ok := strings.CutPrefix(f, "name:"); ok {
			name = v
		} else if v, ok := strings.CutPrefix(f, "cond:"); ok {
			cond = v
		} else {
			return nil, fmt.Errorf("%w: unexpected token %q", ErrParse, f)
		}
	}
	return l.registry.ParseNode(typ, name, cond)
}

// splitTopLevel splits on whitespace outside of braces and parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, -1
	for i, r := range s {
		switch {
		case r == '{' || r == '(':
			depth++
		case r == '}' || r == ')':
			depth--
		case (r == ' ' || r == '\t') && depth == 0:
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// WriteTree writes root in the tree file format.
func WriteTree(w io.Writer, name string, root TreeNode) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "behaviour %s\n", name)
	Walk(root, func(n TreeNode, depth int) {
		bw.WriteString(strings.Repeat("\t", depth+1))
		bw.WriteString(NodeTypeString(n))
		if n.Name() != n.Type() {
			fmt.Fprintf(bw, " name:%s", n.Name())
		}
		if c := n.Condition(); c != nil {
			if _, ok := c.(True); !ok {
				fmt.Fprintf(bw, " cond:%s", ConditionString(c))
			}
		}
		bw.WriteByte('\n')
	})
	return bw.Flush()
}
