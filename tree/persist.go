package tree

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/distance"
	"github.com/hupe1980/vocabtree/persistence"
)

// The persisted tree is a gzip-compressed hierarchical text document. The
// header carries one field per line (type, iterations, branching, depth,
// vectorLength, size) followed by "nodes:" and a pre-order sequence of node
// records. A record with wordId -1 is interior and is immediately followed
// by exactly Branching child records; a record with wordId >= 0 is a leaf.
// Save and Load implement this single grammar.

const (
	treeTypeReal   = "HKM"
	treeTypeBinary = "HKMAJ"

	// dataValuesPerLine bounds how many center elements go on one data line.
	dataValuesPerLine = 16
)

func treeType(t descriptor.ElementType) string {
	if t == descriptor.Uint8 {
		return treeTypeBinary
	}
	return treeTypeReal
}

// Save persists the tree to a gzip-compressed file, replacing it atomically.
func (t *Tree[E]) Save(path string) error {
	if t.root == nil {
		return ErrTreeEmpty
	}
	return persistence.SaveGzipFile(path, t.Encode)
}

// Encode writes the tree document to w without compression framing.
func (t *Tree[E]) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "type: %s\n", treeType(descriptor.TypeOf[E]()))
	fmt.Fprintf(bw, "iterations: %d\n", t.params.MaxIterations)
	fmt.Fprintf(bw, "branching: %d\n", t.params.Branching)
	fmt.Fprintf(bw, "depth: %d\n", t.params.Depth)
	fmt.Fprintf(bw, "vectorLength: %d\n", t.veclen)
	fmt.Fprintf(bw, "size: %d\n", t.size)
	fmt.Fprintf(bw, "nodes:\n")

	if err := t.encodeNode(bw, t.root); err != nil {
		return err
	}

	return bw.Flush()
}

func (t *Tree[E]) encodeNode(bw *bufio.Writer, node *Node[E]) error {
	fmt.Fprintf(bw, "   -\n")
	fmt.Fprintf(bw, "      center:\n")
	fmt.Fprintf(bw, "         rows: 1\n")
	fmt.Fprintf(bw, "         cols: %d\n", t.veclen)
	fmt.Fprintf(bw, "         dt: %s\n", descriptor.TypeOf[E]().Tag())

	for off := 0; off < len(node.Center); off += dataValuesPerLine {
		end := min(off+dataValuesPerLine, len(node.Center))

		if off == 0 {
			fmt.Fprintf(bw, "         data: [ ")
		} else {
			fmt.Fprintf(bw, "            ")
		}
		for k := off; k < end; k++ {
			if k > off {
				fmt.Fprintf(bw, ", ")
			}
			fmt.Fprintf(bw, "%s", t.kern.formatElem(node.Center[k]))
		}
		if end == len(node.Center) {
			fmt.Fprintf(bw, " ]\n")
		} else {
			fmt.Fprintf(bw, ",\n")
		}
	}

	fmt.Fprintf(bw, "      nodeId: %d\n", node.ID)
	if _, err := fmt.Fprintf(bw, "      wordId: %d\n", node.WordID); err != nil {
		return err
	}

	for _, child := range node.Children {
		if err := t.encodeNode(bw, child); err != nil {
			return err
		}
	}

	return nil
}

// Load reads a tree previously written by Save. The element kind E must
// match the persisted type tag.
func Load[E descriptor.Element](path string) (*Tree[E], error) {
	var t *Tree[E]
	err := persistence.LoadGzipFile(path, func(r io.Reader) error {
		var derr error
		t, derr = Decode[E](r)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Decode reads an uncompressed tree document from r.
func Decode[E descriptor.Element](r io.Reader) (*Tree[E], error) {
	dist, err := distance.For[E]()
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	d := &treeDecoder[E]{
		sc:   sc,
		kern: kernelFor[E](),
	}

	t, err := d.decode()
	if err != nil {
		return nil, err
	}

	t.kern = d.kern
	t.dist = dist
	return t, nil
}

type treeDecoder[E descriptor.Element] struct {
	sc   *bufio.Scanner
	kern kernel[E]

	params   Params
	veclen   int
	size     int
	numNodes int
	words    []*Node[E]
}

func (d *treeDecoder[E]) decode() (*Tree[E], error) {
	if err := d.decodeHeader(); err != nil {
		return nil, err
	}

	root, err := d.decodeNode(0)
	if err != nil {
		return nil, err
	}

	if d.numNodes != d.size {
		return nil, fmt.Errorf("%w: header declares %d nodes, found %d", ErrParse, d.size, d.numNodes)
	}

	return &Tree[E]{
		params: d.params,
		veclen: d.veclen,
		size:   d.size,
		root:   root,
		words:  d.words,
	}, nil
}

func (d *treeDecoder[E]) decodeHeader() error {
	typeTag := ""
	sawNodes := false

	for d.sc.Scan() {
		fields := strings.Fields(d.sc.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "type:":
			if len(fields) > 1 {
				typeTag = fields[1]
			}
		case "iterations:":
			d.params.MaxIterations, _ = d.headerInt(fields)
		case "branching:":
			if v, err := d.headerInt(fields); err == nil {
				d.params.Branching = v
			} else {
				return err
			}
		case "depth:":
			if v, err := d.headerInt(fields); err == nil {
				d.params.Depth = v
			} else {
				return err
			}
		case "vectorLength:":
			if v, err := d.headerInt(fields); err == nil {
				d.veclen = v
			} else {
				return err
			}
		case "size:":
			if v, err := d.headerInt(fields); err == nil {
				d.size = v
			} else {
				return err
			}
		case "nodes:":
			sawNodes = true
		}
		if sawNodes {
			break
		}
	}
	if err := d.sc.Err(); err != nil {
		return err
	}
	if !sawNodes {
		return fmt.Errorf("%w: missing nodes section", ErrParse)
	}

	if want := treeType(descriptor.TypeOf[E]()); typeTag != want {
		return fmt.Errorf("%w: tree type %q does not match element kind (want %q)", ErrParse, typeTag, want)
	}
	if d.params.Branching < 2 || d.params.Depth < 1 || d.veclen < 1 || d.size < 1 {
		return fmt.Errorf("%w: invalid header (branching %d, depth %d, vectorLength %d, size %d)",
			ErrParse, d.params.Branching, d.params.Depth, d.veclen, d.size)
	}

	return nil
}

func (d *treeDecoder[E]) headerInt(fields []string) (int, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: field %q has no value", ErrParse, fields[0])
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %v", ErrParse, fields[0], err)
	}
	return v, nil
}

// decodeNode reads one node record and, for interior nodes, recurses into
// its Branching children.
func (d *treeDecoder[E]) decodeNode(level int) (*Node[E], error) {
	node := &Node[E]{WordID: -1}

	rows, cols := -1, -1
	tag := ""
	center := make([]E, 0, d.veclen)
	sawWordID := false
	dataClosed := false

	for !sawWordID && d.sc.Scan() {
		line := d.sc.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "-", "center:":
			// Record and center markers carry no values.
		case "rows:":
			v, err := d.headerInt(fields)
			if err != nil {
				return nil, err
			}
			rows = v
		case "cols:":
			v, err := d.headerInt(fields)
			if err != nil {
				return nil, err
			}
			cols = v
		case "dt:":
			if len(fields) > 1 {
				tag = fields[1]
			}
		case "nodeId:":
			v, err := d.headerInt(fields)
			if err != nil {
				return nil, err
			}
			node.ID = v
		case "wordId:":
			v, err := d.headerInt(fields)
			if err != nil {
				return nil, err
			}
			node.WordID = v
			sawWordID = true
		default:
			if dataClosed {
				return nil, fmt.Errorf("%w: unexpected line %q", ErrParse, line)
			}
			if strings.HasPrefix(strings.TrimSpace(line), "data:") {
				line = strings.Replace(line, "data:", " ", 1)
			}
			if strings.Contains(line, "]") {
				dataClosed = true
			}

			line = strings.NewReplacer("[", " ", ",", " ", "]", " ").Replace(line)
			for _, s := range strings.Fields(line) {
				e, err := d.kern.parseElem(s)
				if err != nil {
					return nil, fmt.Errorf("%w: bad center element %q: %v", ErrParse, s, err)
				}
				center = append(center, e)
			}
		}
	}
	if err := d.sc.Err(); err != nil {
		return nil, err
	}
	if !sawWordID {
		return nil, fmt.Errorf("%w: unexpected end of node record", ErrParse)
	}

	if rows != 1 || cols != d.veclen {
		return nil, fmt.Errorf("%w: center shape %dx%d, want 1x%d", ErrParse, rows, cols, d.veclen)
	}
	if want := descriptor.TypeOf[E]().Tag(); tag != want {
		return nil, fmt.Errorf("%w: element tag %q, want %q", ErrParse, tag, want)
	}
	if len(center) != d.veclen {
		return nil, fmt.Errorf("%w: center has %d elements, want %d", ErrParse, len(center), d.veclen)
	}

	node.Center = center
	d.numNodes++

	if node.WordID >= 0 {
		if node.WordID != len(d.words) {
			return nil, fmt.Errorf("%w: leaf word id %d out of order (want %d)", ErrParse, node.WordID, len(d.words))
		}
		d.words = append(d.words, node)
		return node, nil
	}

	// Interior node: the declared depth bounds where children may appear.
	if level >= d.params.Depth {
		return nil, fmt.Errorf("%w: interior node at depth %d exceeds declared depth %d", ErrParse, level, d.params.Depth)
	}

	node.Children = make([]*Node[E], d.params.Branching)
	for c := range node.Children {
		child, err := d.decodeNode(level + 1)
		if err != nil {
			return nil, err
		}
		node.Children[c] = child
	}

	return node, nil
}
