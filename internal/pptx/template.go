package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Template resolution errors.
var (
	ErrTemplateOpen  = errors.New("template cannot be opened")
	ErrTemplateParse = errors.New("template cannot be parsed")
)

// LeadShapeName is the reserved placeholder name for lead text. The match
// is exact and case-sensitive; "lead" or "LEAD" do not qualify.
const LeadShapeName = "Lead"

// Role classifies a template placeholder. Name-based matching is confined
// to this resolver; the assembler works with roles only.
type Role int

// Placeholder roles.
const (
	RoleGeneric Role = iota
	RoleTitle
	RoleBody
	RoleLead
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleTitle:
		return "title"
	case RoleBody:
		return "body"
	case RoleLead:
		return "lead"
	default:
		return "generic"
	}
}

// ShapeDescriptor is a named, positioned placeholder region extracted
// from a template layout.
type ShapeDescriptor struct {
	Name  string
	Role  Role
	Frame Rect

	// centered marks a ctrTitle placeholder; used when choosing the
	// title layout.
	centered bool
}

// TemplateLayout is one reusable slide layout.
type TemplateLayout struct {
	Name         string
	Placeholders map[Role]ShapeDescriptor
}

// LayoutSet is the resolver's output: one layout per slide kind plus a
// global name lookup used for lead resolution, which is name-based and
// independent of layout.
type LayoutSet struct {
	Title   TemplateLayout
	Content TemplateLayout
	ByName  map[string]ShapeDescriptor

	SlideWidth  EMU
	SlideHeight EMU

	// ThemeXML is the template's theme part, carried into the output.
	// Empty for the default layout set.
	ThemeXML []byte

	// FromTemplate reports whether the set came from a supplied template
	// (strict placeholder checks only apply then).
	FromTemplate bool
}

// Default slide geometry: 10 x 7.5 inches.
const (
	DefaultSlideWidth  = EMU(9144000)
	DefaultSlideHeight = EMU(6858000)
)

// DefaultLayouts returns the built-in layout set used when no template is
// supplied: a title layout with centered title and subtitle, and a content
// layout with title and body. No Lead placeholder exists by default.
func DefaultLayouts() *LayoutSet {
	return &LayoutSet{
		Title: TemplateLayout{
			Name: "Title Slide",
			Placeholders: map[Role]ShapeDescriptor{
				RoleTitle: {Name: "Title 1", Role: RoleTitle,
					Frame: Rect{X: 685800, Y: 2130425, W: 7772400, H: 1470025}},
				RoleBody: {Name: "Subtitle 2", Role: RoleBody,
					Frame: Rect{X: 1371600, Y: 3886200, W: 6400800, H: 1752600}},
			},
		},
		Content: TemplateLayout{
			Name: "Title and Content",
			Placeholders: map[Role]ShapeDescriptor{
				RoleTitle: {Name: "Title 1", Role: RoleTitle,
					Frame: Rect{X: 457200, Y: 274638, W: 8229600, H: 1143000}},
				RoleBody: {Name: "Content Placeholder 2", Role: RoleBody,
					Frame: Rect{X: 457200, Y: 1600200, W: 8229600, H: 4525963}},
			},
		},
		ByName:      map[string]ShapeDescriptor{},
		SlideWidth:  DefaultSlideWidth,
		SlideHeight: DefaultSlideHeight,
	}
}

// ResolveTemplate inspects a template presentation package and extracts
// its layouts and named placeholder shapes. It fails only when the bytes
// are not a readable package; a template that merely lacks expected
// placeholders resolves successfully and degrades at assembly time.
func ResolveTemplate(data []byte) (*LayoutSet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateOpen, err)
	}

	set := DefaultLayouts()
	set.FromTemplate = true

	var layoutNames []string
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
		if strings.HasPrefix(f.Name, "ppt/slideLayouts/") && strings.HasSuffix(f.Name, ".xml") {
			layoutNames = append(layoutNames, f.Name)
		}
	}
	sort.Strings(layoutNames)

	if f, ok := parts["ppt/presentation.xml"]; ok {
		if w, h, err := parseSlideSize(f); err == nil && w > 0 && h > 0 {
			set.SlideWidth, set.SlideHeight = w, h
		}
	}

	if f, ok := parts["ppt/theme/theme1.xml"]; ok {
		if raw, err := readPart(f); err == nil {
			set.ThemeXML = raw
		}
	}

	var layouts []TemplateLayout
	for _, name := range layoutNames {
		layout, shapes, err := parseLayout(parts[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateParse, name, err)
		}
		layouts = append(layouts, layout)
		for _, sd := range shapes {
			if _, taken := set.ByName[sd.Name]; !taken {
				set.ByName[sd.Name] = sd
			}
		}
	}

	if len(layouts) == 0 {
		// A package with no layouts still resolves; the built-in
		// geometry stands in.
		return set, nil
	}

	set.Title = pickLayout(layouts, true)
	set.Content = pickLayout(layouts, false)
	return set, nil
}

// pickLayout chooses the best layout for a slide kind. Title slides prefer
// a layout whose title placeholder is the centered kind; content slides
// prefer one carrying both title and body. Either falls back to positional
// order (first layout for title, second for content).
func pickLayout(layouts []TemplateLayout, title bool) TemplateLayout {
	if title {
		for _, l := range layouts {
			if ph, ok := l.Placeholders[RoleTitle]; ok && ph.centered {
				return l
			}
		}
		return layouts[0]
	}
	for _, l := range layouts {
		_, hasTitle := l.Placeholders[RoleTitle]
		_, hasBody := l.Placeholders[RoleBody]
		if hasTitle && hasBody && !l.Placeholders[RoleTitle].centered {
			return l
		}
	}
	if len(layouts) > 1 {
		return layouts[1]
	}
	return layouts[0]
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseSlideSize reads sldSz from the presentation part.
func parseSlideSize(f *zip.File) (EMU, EMU, error) {
	raw, err := readPart(f)
	if err != nil {
		return 0, 0, err
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, 0, nil
		}
		if err != nil {
			return 0, 0, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldSz" {
			continue
		}
		var w, h int64
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "cx":
				w, _ = strconv.ParseInt(a.Value, 10, 64)
			case "cy":
				h, _ = strconv.ParseInt(a.Value, 10, 64)
			}
		}
		return EMU(w), EMU(h), nil
	}
}

// parseLayout walks one slide layout part and extracts placeholder shapes.
// Returns the layout plus every named shape found (for the global lookup).
func parseLayout(f *zip.File) (TemplateLayout, []ShapeDescriptor, error) {
	raw, err := readPart(f)
	if err != nil {
		return TemplateLayout{}, nil, err
	}

	layout := TemplateLayout{
		Name:         strings.TrimSuffix(strings.TrimPrefix(f.Name, "ppt/slideLayouts/"), ".xml"),
		Placeholders: map[Role]ShapeDescriptor{},
	}

	var all []ShapeDescriptor
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		inShape bool
		depth   int
		spDepth int
		cur     shapeScan
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TemplateLayout{}, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "sp":
				if !inShape {
					inShape = true
					spDepth = depth
					cur = shapeScan{}
				}
			case "cNvPr":
				if inShape && cur.name == "" {
					cur.name = attr(t, "name")
				}
			case "ph":
				if inShape {
					cur.isPH = true
					cur.phType = attr(t, "type")
				}
			case "off":
				if inShape {
					cur.frame.X = emuAttr(t, "x")
					cur.frame.Y = emuAttr(t, "y")
				}
			case "ext":
				if inShape {
					cur.frame.W = emuAttr(t, "cx")
					cur.frame.H = emuAttr(t, "cy")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "sp" && inShape && depth == spDepth {
				inShape = false
				sd := cur.descriptor()
				all = append(all, sd)
				if sd.Role != RoleGeneric {
					if _, taken := layout.Placeholders[sd.Role]; !taken {
						layout.Placeholders[sd.Role] = sd
					}
				}
			}
			depth--
		}
	}
	return layout, all, nil
}

// shapeScan accumulates one <p:sp> while token-walking a layout part.
type shapeScan struct {
	name   string
	isPH   bool
	phType string
	frame  Rect
}

// descriptor resolves the scanned shape into a ShapeDescriptor.
// Role rules: the template's own type metadata decides Title/Body; Lead is
// decided purely by the reserved shape name.
func (s shapeScan) descriptor() ShapeDescriptor {
	sd := ShapeDescriptor{Name: s.name, Role: RoleGeneric, Frame: s.frame}

	if s.name == LeadShapeName {
		sd.Role = RoleLead
		return sd
	}
	if !s.isPH {
		return sd
	}
	switch s.phType {
	case "title", "ctrTitle":
		sd.Role = RoleTitle
		sd.centered = s.phType == "ctrTitle"
	case "body", "subTitle", "":
		// Absent type defaults to body in the schema.
		sd.Role = RoleBody
	}
	return sd
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func emuAttr(se xml.StartElement, name string) EMU {
	v, _ := strconv.ParseInt(attr(se, name), 10, 64)
	return EMU(v)
}
