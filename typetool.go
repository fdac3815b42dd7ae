package psd

import "fmt"

// Alignment enumerates paragraph alignment for text layers.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
	AlignJustify
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	case AlignJustify:
		return "justify"
	}
	return fmt.Sprintf("alignment(%d)", int(a))
}

// FillColor holds a style run's color components as stored by the text
// engine: normalized 0..1 values, alpha first, then RGB or CMYK components
// depending on the document space.
type FillColor struct {
	Values []float64
}

// StyleRun describes the character styling of one run of text. Fields the
// source data does not carry are nil, never silently zero.
type StyleRun struct {
	Length   int
	Font     *string
	Size     *float64
	Color    *FillColor
	Tracking *float64
	Leading  *float64
}

// ParagraphRun describes one paragraph's alignment. Justification is the
// engine's raw enumeration (0 left, 1 right, 2 center, 3..6 justify
// variants).
type ParagraphRun struct {
	Length        int
	Alignment     Alignment
	Justification int
}

// TextRecord is the best-effort interpretation of a text layer's engine
// data: whatever could be parsed, and nothing invented for the rest.
type TextRecord struct {
	Text          string
	StyleRuns     []StyleRun
	ParagraphRuns []ParagraphRun

	// Transform is the layer's 2D affine transform in the order
	// xx, xy, yx, yy, tx, ty. Identity when absent.
	Transform [6]float64
}

func identityTransform() [6]float64 { return [6]float64{1, 0, 0, 1, 0, 0} }

// parseTypeTool interprets a 'TySh' block: version, a 6-coefficient affine
// transform, and a descriptor holding the literal text plus the raw engine
// data. Interpretation degrades to partial results; the only hard failure
// is a block too short to hold the transform.
func parseTypeTool(data []byte) (*TextRecord, error) {
	r := NewReader(data)
	rec := &TextRecord{Transform: identityTransform()}

	version, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("type tool version: %w", err)
	}
	if version != 1 {
		return nil, fmt.Errorf("type tool version %d", version)
	}

	for i := 0; i < 6; i++ {
		if rec.Transform[i], err = r.ReadFloat64(); err != nil {
			return nil, fmt.Errorf("type tool transform: %w", err)
		}
	}

	// Text descriptor: version tag, descriptor version, descriptor.
	if err := r.Skip(6); err != nil {
		return rec, nil
	}
	desc, err := parseDescriptor(r)
	if err != nil {
		return rec, nil
	}

	if text, ok := edString(desc, "Txt "); ok {
		rec.Text = text
	}
	if engine, ok := desc["EngineData"].([]byte); ok {
		if ed, err := parseEngineData(engine); err == nil {
			rec.applyEngineData(ed)
		}
	}
	return rec, nil
}

// applyEngineData extracts style runs, paragraph runs and a fallback text
// string from a decoded engine-data plist.
func (t *TextRecord) applyEngineData(ed map[string]any) {
	if t.Text == "" {
		if editor, ok := edDict(ed, "EngineDict", "Editor"); ok {
			if text, ok := edString(editor, "Text"); ok {
				t.Text = text
			}
		}
	}

	fonts := fontSet(ed)

	if styleRun, ok := edDict(ed, "EngineDict", "StyleRun"); ok {
		lengths, _ := edList(styleRun, "RunLengthArray")
		runs, _ := edList(styleRun, "RunArray")
		for i, run := range runs {
			sheet, ok := edDict(run, "StyleSheet", "StyleSheetData")
			if !ok {
				continue
			}
			sr := StyleRun{Length: runLength(lengths, i)}
			if idx, ok := edFloat(sheet, "Font"); ok {
				if name, ok := fontName(fonts, int(idx)); ok {
					sr.Font = &name
				}
			}
			if size, ok := edFloat(sheet, "FontSize"); ok {
				sr.Size = &size
			}
			if tracking, ok := edFloat(sheet, "Tracking"); ok {
				sr.Tracking = &tracking
			}
			if leading, ok := edFloat(sheet, "Leading"); ok {
				sr.Leading = &leading
			}
			if fill, ok := edDict(sheet, "FillColor"); ok {
				if values, ok := edList(fill, "Values"); ok {
					color := &FillColor{}
					for _, v := range values {
						if f, ok := v.(float64); ok {
							color.Values = append(color.Values, f)
						}
					}
					if len(color.Values) > 0 {
						sr.Color = color
					}
				}
			}
			t.StyleRuns = append(t.StyleRuns, sr)
		}
	}

	if paraRun, ok := edDict(ed, "EngineDict", "ParagraphRun"); ok {
		lengths, _ := edList(paraRun, "RunLengthArray")
		runs, _ := edList(paraRun, "RunArray")
		for i, run := range runs {
			props, ok := edDict(run, "ParagraphSheet", "Properties")
			if !ok {
				continue
			}
			just, ok := edFloat(props, "Justification")
			if !ok {
				continue
			}
			t.ParagraphRuns = append(t.ParagraphRuns, ParagraphRun{
				Length:        runLength(lengths, i),
				Alignment:     alignmentFromJustification(int(just)),
				Justification: int(just),
			})
		}
	}
}

func fontSet(ed map[string]any) []any {
	if res, ok := edDict(ed, "ResourceDict"); ok {
		if fonts, ok := edList(res, "FontSet"); ok {
			return fonts
		}
	}
	if res, ok := edDict(ed, "DocumentResources"); ok {
		if fonts, ok := edList(res, "FontSet"); ok {
			return fonts
		}
	}
	return nil
}

func fontName(fonts []any, idx int) (string, bool) {
	if idx < 0 || idx >= len(fonts) {
		return "", false
	}
	font, ok := fonts[idx].(map[string]any)
	if !ok {
		return "", false
	}
	return edString(font, "Name")
}

func runLength(lengths []any, i int) int {
	if i < 0 || i >= len(lengths) {
		return 0
	}
	if f, ok := lengths[i].(float64); ok {
		return int(f)
	}
	return 0
}

func alignmentFromJustification(just int) Alignment {
	switch just {
	case 0:
		return AlignLeft
	case 1:
		return AlignRight
	case 2:
		return AlignCenter
	default:
		return AlignJustify
	}
}
