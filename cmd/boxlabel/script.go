package main

// Replays annotation gestures from a line based script against a session.

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sensorable/boxlabel"
)

// scriptRunner executes script commands. It is also the label prompter of the session: the label
// of a drawn box is read from the line following the "up" command.
type scriptRunner struct {
	session *boxlabel.Session
	export  func() error // Invoked by the "export" command.
	out     io.Writer    // Receives listings and command feedback.

	scanner *bufio.Scanner
	lineNo  int
	pushed  *string // A line read ahead by PromptLabel.
}

func newScriptRunner(s *boxlabel.Session, in io.Reader, out io.Writer,
		export func() error) *scriptRunner {

	return &scriptRunner{session: s, export: export, out: out, scanner: bufio.NewScanner(in)}
}

// nextLine returns the next line that is neither blank nor a comment.
func (r *scriptRunner) nextLine() (string, bool) {
	if r.pushed != nil {
		line := *r.pushed
		r.pushed = nil
		return line, true
	}
	for r.scanner.Scan() {
		r.lineNo++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

// PromptLabel reads the label for a drawn box. Anything other than a "label" line cancels the box
// and is executed as the next command.
func (r *scriptRunner) PromptLabel() (string, bool) {
	line, ok := r.nextLine()
	if !ok {
		return "", false
	}
	cmd, rest := splitCommand(line)
	switch cmd {
	case "label":
		return rest, true
	case "cancel":
		return "", false
	}
	r.pushed = &line
	return "", false
}

// Run executes commands until the end of input or the first invalid command.
func (r *scriptRunner) Run() error {
	for {
		line, ok := r.nextLine()
		if !ok {
			break
		}
		if err := r.exec(line); err != nil {
			return fmt.Errorf("line %d: %v", r.lineNo, err)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("failed to read the script: %v", err)
	}
	return nil
}

func splitCommand(line string) (cmd, rest string) {
	fields := strings.SplitN(line, " ", 2)
	cmd = strings.ToLower(fields[0])
	if len(fields) == 2 {
		rest = strings.TrimSpace(fields[1])
	}
	return cmd, rest
}

// parseFloats parses exactly n space separated numbers.
func parseFloats(args string, n int) ([]float64, error) {
	fields := strings.Fields(args)
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d numbers, got %q", n, args)
	}
	values := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		values[i] = v
	}
	return values, nil
}

func parsePoint(args string) (boxlabel.Point, error) {
	v, err := parseFloats(args, 2)
	if err != nil {
		return boxlabel.Point{}, err
	}
	return boxlabel.Point{X: v[0], Y: v[1]}, nil
}

// parseOrdinal parses a 1-based position and returns it 0-based.
func parseOrdinal(args string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q", args)
	}
	return n - 1, nil
}

func (r *scriptRunner) exec(line string) error {
	s := r.session
	cmd, args := splitCommand(line)

	switch cmd {
	case "down", "move", "up":
		p, err := parsePoint(args)
		if err != nil {
			return err
		}
		switch cmd {
		case "down":
			s.PointerDown(p)
		case "move":
			s.PointerMove(p)
		case "up":
			if s.PointerUp(p) {
				if box, ok := s.ResolveLabel(r); ok {
					fmt.Fprintf(r.out, "Added %v\n", box)
				} else {
					fmt.Fprintln(r.out, "Cancelled the new bounding box")
				}
			}
		}

	case "label", "cancel":
		log.Printf("Line %d: no bounding box waits for a label, ignoring %q", r.lineNo, cmd)

	case "select":
		i, err := parseOrdinal(args)
		if err != nil {
			return err
		}
		if !s.Select(i) {
			log.Printf("Line %d: no bounding box %d on this image", r.lineNo, i+1)
		}

	case "delete":
		if !s.DeleteSelected() {
			log.Printf("Line %d: no bounding box selected", r.lineNo)
		}

	case "next":
		s.Next()
	case "prev":
		s.Prev()
	case "goto":
		i, err := parseOrdinal(args)
		if err != nil {
			return err
		}
		if i >= len(s.Images()) {
			return fmt.Errorf("there are only %d images", len(s.Images()))
		}
		s.SetIndex(i)

	case "area":
		v, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		if err := s.SetDisplayArea(v[0], v[1]); err != nil {
			return err
		}

	case "list":
		r.list()

	case "preview":
		if args == "" {
			return fmt.Errorf("missing output path")
		}
		ref, ok := s.Current()
		if !ok {
			return fmt.Errorf("no image loaded")
		}
		m, err := s.Mapper()
		if err != nil {
			return err
		}
		img, err := boxlabel.DisplayImage(ref, m)
		if err != nil {
			return err
		}
		if err := imaging.Save(img, args); err != nil {
			return err
		}

	case "export":
		if err := r.export(); err != nil {
			log.Print("Export failed: ", err)
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

// list prints the current image and its bounding box list.
func (r *scriptRunner) list() {
	s := r.session
	ref, ok := s.Current()
	if !ok {
		fmt.Fprintln(r.out, "No images")
		return
	}
	fmt.Fprintf(r.out, "Viewing: %s (%d/%d)\n", ref.Path, s.Index()+1, len(s.Images()))
	selected, hasSelected := s.Selected()
	for i := range s.Boxes() {
		row, _ := s.BoxSummary(i)
		marker := " "
		if hasSelected && s.Boxes()[i].ID == selected.ID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s\n", marker, row)
	}
}
