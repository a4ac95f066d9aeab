package mapdoc

import (
	"fmt"

	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/models"
)

const (
	DefaultLayerName      = "Default layer"
	DefaultLayerGroupName = "Default layer group"
	DefaultMapName        = "New map"
	DefaultMapVersion     = "1.0"
	DefaultPointType      = "Halt point"
	DefaultStatus         = "active"

	defaultWidth  = 1920
	defaultHeight = 1080
	defaultScaleX = 50
	defaultScaleY = 50

	// defaultHalfExtent is half the side of the square synthesized for a
	// location without vertices.
	defaultHalfExtent = 50
)

func DefaultPointProps() PointProps {
	return PointProps{Radius: 5, Color: "#1890ff", LabelVisible: true}
}

func DefaultPathProps() PathProps {
	return PathProps{StrokeColor: "#52c41a", StrokeWidth: 2, LineStyle: "solid", LabelVisible: true}
}

func DefaultLocationProps() LocationProps {
	return LocationProps{
		FillColor:    "#1890ff",
		FillOpacity:  0.3,
		StrokeColor:  "#1890ff",
		StrokeWidth:  2,
		LabelVisible: true,
	}
}

// DefaultPathGeometry is the segment from (0,0) to (100,100) used when a path
// arrives without control points or resolvable endpoints.
func DefaultPathGeometry(start, end models.FlexID) PathGeometry {
	return PathGeometry{
		PathType: PathLine,
		ControlPoints: []Vertex{
			{ID: start.String(), X: 0, Y: 0},
			{ID: end.String(), X: 100, Y: 100},
		},
	}
}

// DefaultLocationGeometry is a closed square around center.
func DefaultLocationGeometry(id string, center geom.Point) LocationGeometry {
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	vs := make([]Vertex, len(corners))
	for i, c := range corners {
		vs[i] = Vertex{
			ID: fmt.Sprintf("%s_v%d", id, i+1),
			X:  center.X + c[0]*defaultHalfExtent,
			Y:  center.Y + c[1]*defaultHalfExtent,
			Z:  cloneFloat(center.Z),
		}
	}
	return LocationGeometry{Vertices: vs, Closed: true}
}

func defaultCanvas() CanvasState {
	return CanvasState{Scale: 1, Width: defaultWidth, Height: defaultHeight}
}
