package rayfield

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteRays writes the traced trajectories as text: a short header, then
// one block per ray with launch angles, step count, bounce counts, and the
// step coordinates. Hybrid rays are written in ocean-frame coordinates so
// plots from different bearings overlay correctly.
func WriteRays(w io.Writer, title string, freq *FreqInfo, rays []RayPath) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "'%s'\n", title)
	fmt.Fprintf(bw, "%g\n", freq.Freq0)
	fmt.Fprintf(bw, "%d\n", len(rays))
	for i := range rays {
		ray := &rays[i]
		nTop, nBot := lastBounces(ray)
		fmt.Fprintf(bw, "%.6f %.6f\n", ray.Info.SrcDeclAngle, ray.Info.SrcAzimAngle)
		fmt.Fprintf(bw, "%d %d %d\n", ray.NSteps, nTop, nBot)
		if ray.Pts3D != nil {
			for _, p := range ray.Pts3D {
				fmt.Fprintf(bw, "%.4f %.4f %.4f\n", p.X[0], p.X[1], p.X[2])
			}
			continue
		}
		hybrid := ray.Org.TRadial[0] != 0 || ray.Org.TRadial[1] != 0
		for _, p := range ray.Pts2D {
			if hybrid {
				xo := ray.Org.RayToOceanX(p.X)
				fmt.Fprintf(bw, "%.4f %.4f %.4f\n", xo[0], xo[1], xo[2])
			} else {
				fmt.Fprintf(bw, "%.4f %.4f\n", p.X[0], p.X[1])
			}
		}
	}
	return bw.Flush()
}

func lastBounces(ray *RayPath) (int32, int32) {
	if n := len(ray.Pts3D); n > 0 {
		p := &ray.Pts3D[n-1]
		return p.NumTopBnc, p.NumBotBnc
	}
	if n := len(ray.Pts2D); n > 0 {
		p := &ray.Pts2D[n-1]
		return p.NumTopBnc, p.NumBotBnc
	}
	return 0, 0
}

// WriteRaysFile writes the trajectories to path, replacing any existing
// file.
func WriteRaysFile(path, title string, freq *FreqInfo, rays []RayPath) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteRays(f, title, freq, rays); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
