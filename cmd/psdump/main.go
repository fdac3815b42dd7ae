// Command psdump extracts per-layer PNG previews and a JSON description of
// the layer tree from a Photoshop document.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/psdump/psd"
)

var (
	inputsDir string
	outDir    string
	verbose   bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "psdump [file.psd]",
		Short: "Export layer previews and a JSON layer tree from a PSD file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			if len(args) == 0 {
				return listInputs(log)
			}
			return process(log, args[0])
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&inputsDir, "inputs", "inputs", "directory scanned for .psd files")
	cmd.Flags().StringVar(&outDir, "out", filepath.Join("public", "temp"), "output directory root")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listInputs(log *logrus.Logger) error {
	if err := os.MkdirAll(inputsDir, 0o755); err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(inputsDir, "*.psd"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No PSD files found in %s. Please add PSD files there.\n", inputsDir)
		return nil
	}
	fmt.Println("Available PSD files:")
	for i, f := range files {
		fmt.Printf("%d. %s\n", i+1, filepath.Base(f))
	}
	fmt.Println("\nUsage: psdump <filename>")
	return nil
}

func resolveInput(name string) string {
	if !strings.HasSuffix(name, ".psd") {
		name += ".psd"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(inputsDir, name)
}

func process(log *logrus.Logger, name string) error {
	path := resolveInput(name)
	base := strings.TrimSuffix(filepath.Base(path), ".psd")
	log.WithField("file", path).Info("processing PSD file")

	doc, err := psd.Open(path, &psd.Options{Logger: log})
	if errors.Is(err, psd.ErrUnsupportedColorMode) {
		log.Warn("invalid color mode tag, retrying with best-effort settings")
		doc, err = psd.Open(path, &psd.Options{Logger: log, BestEffort: true})
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	docDir := filepath.Join(outDir, base)
	previewDir := filepath.Join(docDir, "previews")
	if err := os.RemoveAll(previewDir); err != nil {
		return err
	}
	if err := os.MkdirAll(previewDir, 0o755); err != nil {
		return err
	}

	ex := &exporter{doc: doc, dir: previewDir, log: log}
	root := doc.Root()
	reports := make([]*layerReport, 0, len(root.Children))
	for _, child := range root.Children {
		reports = append(reports, ex.export(child, child.Name))
	}

	summary := summarize(reports)
	out := outputDoc{
		PSDFile: filepath.Base(path),
		Summary: summaryReport{
			TotalLayers: summary.total,
			Successful:  summary.success,
			Empty:       summary.empty,
			Failed:      summary.failed,
			Info: docInfo{
				Size:      [2]int{doc.Width, doc.Height},
				ColorMode: doc.ColorMode.String(),
				Depth:     doc.Depth,
			},
		},
		Layers: reports,
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(docDir, "layer_structure.json")
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"total":      summary.total,
		"successful": summary.success,
		"empty":      summary.empty,
		"failed":     summary.failed,
	}).Info("layer extraction completed")
	log.WithField("output", docDir).Info("output saved")
	return nil
}

type outputDoc struct {
	PSDFile string         `json:"psd_file"`
	Summary summaryReport  `json:"summary"`
	Layers  []*layerReport `json:"layers"`
}

type summaryReport struct {
	TotalLayers int     `json:"total_layers"`
	Successful  int     `json:"successful_extractions"`
	Empty       int     `json:"empty_extractions"`
	Failed      int     `json:"failed_extractions"`
	Info        docInfo `json:"psd_info"`
}

type docInfo struct {
	Size      [2]int `json:"size"`
	ColorMode string `json:"color_mode"`
	Depth     int    `json:"depth"`
}

type layerReport struct {
	ID            int32           `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	PreviewStatus string          `json:"preview_status"`
	Properties    layerProperties `json:"layer_properties"`
	Analysis      *analysisReport `json:"image_analysis,omitempty"`
	Preview       string          `json:"preview,omitempty"`
	Children      []*layerReport  `json:"children,omitempty"`
}

type layerProperties struct {
	Kind          string      `json:"kind"`
	Visible       bool        `json:"visible"`
	Opacity       uint8       `json:"opacity"`
	BlendMode     string      `json:"blend_mode"`
	HasMask       bool        `json:"has_mask"`
	HasVectorMask bool        `json:"has_vector_mask"`
	HasEffects    bool        `json:"has_effects"`
	Clipping      bool        `json:"clipping_layer"`
	BBox          [4]int32    `json:"bbox"`
	Size          [2]int      `json:"size"`
	Text          *textReport `json:"text_style,omitempty"`
}

type textReport struct {
	Text          string     `json:"text"`
	FontFamily    *string    `json:"font_family,omitempty"`
	FontSize      *float64   `json:"font_size,omitempty"`
	Color         []float64  `json:"color,omitempty"`
	Tracking      *float64   `json:"tracking,omitempty"`
	Leading       *float64   `json:"leading,omitempty"`
	Alignment     string     `json:"alignment,omitempty"`
	Transform     [6]float64 `json:"transform"`
}

type analysisReport struct {
	Empty        bool    `json:"is_empty"`
	Reason       string  `json:"reason"`
	OpaquePixels int     `json:"non_transparent_pixels"`
	TotalPixels  int     `json:"total_pixels"`
	ColorStdDev  float64 `json:"rgb_std"`
	UniqueColors int     `json:"unique_colors"`
}

type exporter struct {
	doc *psd.Document
	dir string
	log *logrus.Logger
}

func (ex *exporter) export(node *psd.Node, prefix string) *layerReport {
	rep := &layerReport{
		Name:          node.Name,
		Type:          "group",
		PreviewStatus: "not_attempted",
	}

	layer := node.Layer
	if layer != nil {
		rep.ID = layer.ID
		rep.Type = layer.Kind.String()
		rep.Properties = layerProperties{
			Kind:          layer.Kind.String(),
			Visible:       layer.Visible(),
			Opacity:       layer.Opacity,
			BlendMode:     layer.BlendMode.String(),
			HasMask:       layer.HasPixelMask,
			HasVectorMask: layer.HasVectorMask,
			HasEffects:    layer.HasEffects,
			Clipping:      layer.Clipping,
			BBox:          [4]int32{layer.Left, layer.Top, layer.Right, layer.Bottom},
			Size:          [2]int{layer.Width(), layer.Height()},
		}
		if layer.Text != nil {
			rep.Properties.Text = textStyle(layer.Text)
		}
	}

	if node.Kind == psd.NodeGroup {
		for _, child := range node.Children {
			rep.Children = append(rep.Children, ex.export(child, prefix+"_"+child.Name))
		}
		return rep
	}

	if layer == nil {
		return rep
	}

	img, err := ex.doc.Decode(layer)
	switch {
	case errors.Is(err, psd.ErrNoPixelData):
		rep.PreviewStatus = "no_pixels"
		ex.log.WithField("layer", layer.Name).Info("layer has no pixel data")
	case err != nil:
		rep.PreviewStatus = "error"
		ex.log.WithError(err).WithField("layer", layer.Name).Error("error processing layer")
	default:
		analysis := psd.Analyze(img, psd.DefaultAnalyzeOptions())
		rep.Analysis = &analysisReport{
			Empty:        analysis.Empty,
			Reason:       analysis.Reason,
			OpaquePixels: analysis.OpaquePixels,
			TotalPixels:  analysis.TotalPixels,
			ColorStdDev:  analysis.ColorStdDev,
			UniqueColors: analysis.UniqueColors,
		}
		rep.Preview = safeFilename(prefix) + ".png"
		if err := ex.writePNG(img, rep.Preview); err != nil {
			rep.PreviewStatus = "error"
			rep.Preview = ""
			ex.log.WithError(err).WithField("layer", layer.Name).Error("failed to write preview")
			break
		}
		if analysis.Empty {
			rep.PreviewStatus = "extracted_but_empty_" + analysis.Reason
		} else {
			rep.PreviewStatus = "success"
		}
	}
	return rep
}

func (ex *exporter) writePNG(img *psd.DecodedImage, name string) error {
	f, err := os.Create(filepath.Join(ex.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img.ToRGBA())
}

func textStyle(t *psd.TextRecord) *textReport {
	rep := &textReport{Text: t.Text, Transform: t.Transform}
	if len(t.StyleRuns) > 0 {
		first := t.StyleRuns[0]
		rep.FontFamily = first.Font
		rep.FontSize = first.Size
		rep.Tracking = first.Tracking
		rep.Leading = first.Leading
		if first.Color != nil {
			rep.Color = first.Color.Values
		}
	}
	if len(t.ParagraphRuns) > 0 {
		rep.Alignment = t.ParagraphRuns[0].Alignment.String()
	}
	return rep
}

func safeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "-")
	return name
}

type counts struct{ total, success, empty, failed int }

// summarize counts leaf layers the way the JSON consumers expect: groups are
// containers, not extractions.
func summarize(reports []*layerReport) counts {
	var c counts
	for _, rep := range reports {
		if rep.Type == "group" {
			sub := summarize(rep.Children)
			c.total += sub.total
			c.success += sub.success
			c.empty += sub.empty
			c.failed += sub.failed
			continue
		}
		c.total++
		switch {
		case rep.PreviewStatus == "success":
			c.success++
		case strings.HasPrefix(rep.PreviewStatus, "extracted_but_empty"):
			c.empty++
		default:
			c.failed++
		}
	}
	return c
}
