package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/tree"
	"golang.org/x/term"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/config"
	"github.com/vengi-voxel/vengi-sub015/internal/world"
)

// CheckCommand parses tree files, optionally with the scripts and world
// that use them, and prints every behaviour as a tree.
type CheckCommand struct {
	*BaseCommand
	config *config.Config
	flags  *flag.FlagSet

	worldFile string
	scripts   []string
	color     string
	params    bool
	quiet     bool
}

func NewCheckCommand(cfg *config.Config) *CheckCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &CheckCommand{
		BaseCommand: NewBaseCommand("check", "Validate and print behaviour trees", "check [options] [file.tree...]"),
		config:      cfg,
	}
}

func (c *CheckCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags = fs
	c.scripts = nil
	fs.StringVar(&c.worldFile, "world", "", "Also check the scripts, trees and spawns of a world file")
	fs.Func("script", "Script to load before parsing (repeatable)", func(v string) error {
		c.scripts = append(c.scripts, v)
		return nil
	})
	fs.StringVar(&c.color, "color", "", "Styled output: auto, always, never (overrides [check] color)")
	fs.BoolVar(&c.params, "params", true, "Show node and condition parameters")
	fs.BoolVar(&c.quiet, "q", false, "Only report errors")
}

func (c *CheckCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s, err := config.DefaultSchema().Settings(c.config, c.Name())
	if err != nil {
		return err
	}
	color, params := s.CheckColor, s.CheckParams
	if c.flags != nil {
		c.flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "color":
				color = strings.ToLower(c.color)
			case "params":
				params = c.params
			}
		})
	}
	if len(args) == 0 && c.worldFile == "" {
		_, _ = fmt.Fprintf(stderr, "Usage: simpleai %s\n", c.Usage())
		return errUnexpectedArgs
	}

	logger, closer, err := (&logFlags{}).resolveLogging(s, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	var w *world.File
	scripts := append(append([]string(nil), s.ScriptPaths...), c.scripts...)
	trees := append([]string(nil), args...)
	if c.worldFile != "" {
		if w, err = world.Load(c.worldFile); err != nil {
			return err
		}
		scripts = append(scripts, w.Scripts...)
		trees = append(trees, w.Trees...)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sc := newScenario(ctx, logger, s.ScriptTimeout, dirsOf(append(append([]string{c.worldFile}, trees...), scripts...)...)...)
	defer sc.Close()
	if err := sc.load(scripts, trees); err != nil {
		return err
	}
	if w != nil {
		for _, z := range w.Zones {
			for _, spawn := range z.Spawns {
				if sc.trees.Tree(spawn.Behaviour) == nil {
					return fmt.Errorf("zone %s: behaviour %q: %w", z.Name, spawn.Behaviour, ai.ErrUnknownType)
				}
			}
		}
	}

	if !c.quiet {
		st := newTreeStyles(useColor(color, stdout))
		for _, name := range sc.trees.Names() {
			_, _ = fmt.Fprintln(stdout, renderTree(st, name, sc.trees.Tree(name), params))
		}
	}
	_, _ = fmt.Fprintf(stdout, "%d behaviour(s) OK\n", len(sc.trees.Names()))
	return nil
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type treeStyles struct {
	behaviour lipgloss.Style
	nodeType  lipgloss.Style
	name      lipgloss.Style
	condition lipgloss.Style
	branch    lipgloss.Style
}

func newTreeStyles(color bool) treeStyles {
	branch := lipgloss.NewStyle().PaddingRight(1)
	if !color {
		return treeStyles{branch: branch}
	}
	return treeStyles{
		behaviour: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		nodeType:  lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		name:      lipgloss.NewStyle().Faint(true),
		condition: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		branch:    branch.Foreground(lipgloss.Color("240")),
	}
}

func renderTree(st treeStyles, behaviour string, root ai.TreeNode, params bool) string {
	t := tree.Root(st.behaviour.Render(behaviour)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(st.branch)
	if root != nil {
		t.Child(nodeTree(st, root, params))
	}
	return t.String()
}

// nodeTree returns a plain label for leaves and a subtree otherwise.
func nodeTree(st treeStyles, n ai.TreeNode, params bool) any {
	label := nodeLabel(st, n, params)
	children := n.Children()
	if len(children) == 0 {
		return label
	}
	t := tree.Root(label).Enumerator(tree.RoundedEnumerator).EnumeratorStyle(st.branch)
	for _, child := range children {
		t.Child(nodeTree(st, child, params))
	}
	return t
}

func nodeLabel(st treeStyles, n ai.TreeNode, params bool) string {
	typ := n.Type()
	if params {
		typ = ai.NodeTypeString(n)
	}
	var b strings.Builder
	b.WriteString(st.nodeType.Render(typ))
	if n.Name() != n.Type() {
		b.WriteString(" ")
		b.WriteString(st.name.Render(fmt.Sprintf("%q", n.Name())))
	}
	if cond := n.Condition(); cond != nil {
		if _, ok := cond.(ai.True); !ok {
			text := cond.Name()
			if params {
				text = ai.ConditionString(cond)
			}
			b.WriteString(" if ")
			b.WriteString(st.condition.Render(text))
		}
	}
	return b.String()
}
