package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one face found by the detector, in source image pixels.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
	Landmarks  [5][2]float32 // eyes, nose, mouth corners
}

const (
	detInputSize     = 640
	anchorsPerCell   = 2
	nmsIoUThreshold  = 0.4
	detInputName     = "input.1"
	detectorFileName = "det_10g.onnx"
)

// det_10g emits scores, boxes and landmarks per stride, without a batch
// dimension. Rows per stride are (640/stride)^2 * anchorsPerCell.
var (
	detStrides     = [3]int{8, 16, 32}
	detScoreNames  = [3]string{"448", "471", "494"}
	detBoxNames    = [3]string{"451", "474", "497"}
	detMarkNames   = [3]string{"454", "477", "500"}
	detOutputWidth = [3]int64{1, 4, 10} // score, box, landmark columns
)

// Detector runs RetinaFace (det_10g) through ONNX Runtime. A Detector is not
// safe for concurrent use.
type Detector struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	scores    [3]*ort.Tensor[float32]
	boxes     [3]*ort.Tensor[float32]
	marks     [3]*ort.Tensor[float32]
	threshold float32
}

func NewDetector(modelPath string, threshold float32) (*Detector, error) {
	d := &Detector{threshold: threshold}

	var err error
	d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detInputSize, detInputSize))
	if err != nil {
		return nil, fmt.Errorf("create detector input: %w", err)
	}

	var (
		names  []string
		values []ort.Value
	)
	groups := [3]*[3]*ort.Tensor[float32]{&d.scores, &d.boxes, &d.marks}
	groupNames := [3][3]string{detScoreNames, detBoxNames, detMarkNames}
	for g, group := range groups {
		for i, stride := range detStrides {
			rows := int64(detInputSize/stride) * int64(detInputSize/stride) * anchorsPerCell
			t, err := ort.NewEmptyTensor[float32](ort.NewShape(rows, detOutputWidth[g]))
			if err != nil {
				d.Close()
				return nil, fmt.Errorf("create detector output %s: %w", groupNames[g][i], err)
			}
			group[i] = t
			names = append(names, groupNames[g][i])
			values = append(values, t)
		}
	}

	d.session, err = ort.NewAdvancedSession(modelPath,
		[]string{detInputName}, names,
		[]ort.Value{d.input}, values,
		nil,
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	return d, nil
}

// Detect runs the model on a CHW input of detInputSize squared and returns
// faces scaled to an origW x origH image, strongest first.
func (d *Detector) Detect(chw []float32, origW, origH int) ([]Detection, error) {
	copy(d.input.GetData(), chw)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	grid := anchorGrid{
		scaleW:    float32(origW) / detInputSize,
		scaleH:    float32(origH) / detInputSize,
		maxX:      float32(origW),
		maxY:      float32(origH),
		threshold: d.threshold,
	}
	var dets []Detection
	for i, stride := range detStrides {
		dets = grid.decode(dets, stride, d.scores[i].GetData(), d.boxes[i].GetData(), d.marks[i].GetData())
	}
	return nms(dets, nmsIoUThreshold), nil
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	for _, group := range [][3]*ort.Tensor[float32]{d.scores, d.boxes, d.marks} {
		for _, t := range group {
			if t != nil {
				t.Destroy()
			}
		}
	}
}

// anchorGrid decodes distance-to-edge outputs around anchor centres.
type anchorGrid struct {
	scaleW, scaleH float32
	maxX, maxY     float32
	threshold      float32
}

func (g anchorGrid) decode(dst []Detection, stride int, scores, boxes, marks []float32) []Detection {
	cells := detInputSize / stride
	st := float32(stride)

	idx := 0
	for cy := 0; cy < cells; cy++ {
		for cx := 0; cx < cells; cx++ {
			ax, ay := float32(cx)*st, float32(cy)*st
			for a := 0; a < anchorsPerCell; a, idx = a+1, idx+1 {
				if idx >= len(scores) || scores[idx] < g.threshold {
					continue
				}
				b := boxes[idx*4 : idx*4+4]
				det := Detection{
					BBox: [4]float32{
						clamp((ax-b[0]*st)*g.scaleW, 0, g.maxX),
						clamp((ay-b[1]*st)*g.scaleH, 0, g.maxY),
						clamp((ax+b[2]*st)*g.scaleW, 0, g.maxX),
						clamp((ay+b[3]*st)*g.scaleH, 0, g.maxY),
					},
					Confidence: scores[idx],
				}
				for l := 0; l < 5; l++ {
					det.Landmarks[l][0] = (ax + marks[idx*10+l*2]*st) * g.scaleW
					det.Landmarks[l][1] = (ay + marks[idx*10+l*2+1]*st) * g.scaleH
				}
				dst = append(dst, det)
			}
		}
	}
	return dst
}

// nms keeps the most confident box of every overlapping cluster. The result
// is sorted by descending confidence.
func nms(dets []Detection, iouThreshold float32) []Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	kept := dets[:0:0]
	for _, d := range dets {
		overlaps := false
		for _, k := range kept {
			if iou(d.BBox, k.BBox) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	w := math.Max(0, math.Min(float64(a[2]), float64(b[2]))-math.Max(float64(a[0]), float64(b[0])))
	h := math.Max(0, math.Min(float64(a[3]), float64(b[3]))-math.Max(float64(a[1]), float64(b[1])))
	inter := w * h

	union := float64((a[2]-a[0])*(a[3]-a[1])+(b[2]-b[0])*(b[3]-b[1])) - inter
	if union <= 0 {
		return 0
	}
	return float32(inter / union)
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
