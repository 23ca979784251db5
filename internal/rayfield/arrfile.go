package rayfield

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Arrival file layout, little-endian throughout:
//
//	header (arrFileHeader)
//	sx, sy, sz, theta, rz, rr tables as float64
//	per cell, in FieldAddr order: count int32, then MaxNArr Arrival records
//
// Cells are fixed-capacity so any cell can be seeked to by index.

var arrMagic = [4]byte{'A', 'R', 'R', 'V'}

const arrVersion = 1

type arrFileHeader struct {
	Magic   [4]byte
	Version uint32
	RunID   [16]byte
	Freq0   float64

	NSx, NSy, NSz    int32
	NTheta, NRz, NRr int32
	MaxNArr          int32
	Merged           int32 // 1 when the exact/serial regime produced the file
}

// WriteArrivals streams the arena to w in cell order.
func WriteArrivals(w io.Writer, runID uuid.UUID, pos *Position, freq *FreqInfo, arr *ArrInfo) error {
	bw := bufio.NewWriter(w)
	hdr := arrFileHeader{
		Magic:   arrMagic,
		Version: arrVersion,
		RunID:   runID,
		Freq0:   freq.Freq0,
		NSx:     pos.NSx(), NSy: pos.NSy(), NSz: pos.NSz(),
		NTheta: pos.NTheta(), NRz: pos.NRz(), NRr: pos.NRr(),
		MaxNArr: arr.MaxNArr,
	}
	if arr.AllowMerging {
		hdr.Merged = 1
	}
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("arrivals header: %w", err)
	}
	for _, tab := range [][]Real{pos.Sx, pos.Sy, pos.Sz, pos.Theta, pos.Rz, pos.Rr} {
		if err := binary.Write(bw, binary.LittleEndian, tab); err != nil {
			return fmt.Errorf("arrivals tables: %w", err)
		}
	}
	nCells := len(arr.NArr)
	for cell := 0; cell < nCells; cell++ {
		if err := binary.Write(bw, binary.LittleEndian, arr.Count(cell)); err != nil {
			return fmt.Errorf("arrivals cell %d: %w", cell, err)
		}
		recs := arr.Arr[cell*int(arr.MaxNArr) : (cell+1)*int(arr.MaxNArr)]
		if err := binary.Write(bw, binary.LittleEndian, recs); err != nil {
			return fmt.Errorf("arrivals cell %d: %w", cell, err)
		}
	}
	return bw.Flush()
}

// WriteArrivalsFile writes the arena to path, replacing any existing file.
func WriteArrivalsFile(path string, runID uuid.UUID, pos *Position, freq *FreqInfo, arr *ArrInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteArrivals(f, runID, pos, freq, arr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ArrFile is a fully decoded arrival file.
type ArrFile struct {
	RunID  uuid.UUID
	Freq0  Real
	Merged bool

	Pos Position
	Arr ArrInfo
}

// ReadArrivals decodes a file written by WriteArrivals.
func ReadArrivals(r io.Reader) (*ArrFile, error) {
	br := bufio.NewReader(r)
	var hdr arrFileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("arrivals header: %w", err)
	}
	if hdr.Magic != arrMagic {
		return nil, fmt.Errorf("arrivals: bad magic %q", hdr.Magic[:])
	}
	if hdr.Version != arrVersion {
		return nil, fmt.Errorf("arrivals: unsupported version %d", hdr.Version)
	}
	af := &ArrFile{
		RunID:  uuid.UUID(hdr.RunID),
		Freq0:  hdr.Freq0,
		Merged: hdr.Merged == 1,
	}
	readTab := func(n int32) ([]Real, error) {
		if n == 0 {
			return nil, nil
		}
		tab := make([]Real, n)
		if err := binary.Read(br, binary.LittleEndian, tab); err != nil {
			return nil, fmt.Errorf("arrivals tables: %w", err)
		}
		return tab, nil
	}
	var err error
	if af.Pos.Sx, err = readTab(hdr.NSx); err != nil {
		return nil, err
	}
	if af.Pos.Sy, err = readTab(hdr.NSy); err != nil {
		return nil, err
	}
	if af.Pos.Sz, err = readTab(hdr.NSz); err != nil {
		return nil, err
	}
	if af.Pos.Theta, err = readTab(hdr.NTheta); err != nil {
		return nil, err
	}
	if af.Pos.Rz, err = readTab(hdr.NRz); err != nil {
		return nil, err
	}
	if af.Pos.Rr, err = readTab(hdr.NRr); err != nil {
		return nil, err
	}

	nCells := af.Pos.NCells()
	af.Arr = ArrInfo{
		Arr:          make([]Arrival, nCells*int(hdr.MaxNArr)),
		NArr:         make([]int32, nCells),
		MaxNArr:      hdr.MaxNArr,
		AllowMerging: af.Merged,
	}
	for cell := 0; cell < nCells; cell++ {
		if err := binary.Read(br, binary.LittleEndian, &af.Arr.NArr[cell]); err != nil {
			return nil, fmt.Errorf("arrivals cell %d: %w", cell, err)
		}
		recs := af.Arr.Arr[cell*int(hdr.MaxNArr) : (cell+1)*int(hdr.MaxNArr)]
		if err := binary.Read(br, binary.LittleEndian, recs); err != nil {
			return nil, fmt.Errorf("arrivals cell %d: %w", cell, err)
		}
	}
	return af, nil
}

// ReadArrivalsFile decodes the arrival file at path.
func ReadArrivalsFile(path string) (*ArrFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadArrivals(f)
}

// ArrCellReader reads single cells by index without decoding the rest of
// the file; the fixed per-cell capacity makes every cell's offset
// computable from the header alone.
type ArrCellReader struct {
	r       io.ReaderAt
	hdr     arrFileHeader
	dataOff int64
	stride  int64
}

// OpenArrivalsCells validates the header and prepares indexed access.
func OpenArrivalsCells(r io.ReaderAt) (*ArrCellReader, error) {
	hdrSize := int64(binary.Size(arrFileHeader{}))
	var hdr arrFileHeader
	if err := binary.Read(io.NewSectionReader(r, 0, hdrSize), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("arrivals header: %w", err)
	}
	if hdr.Magic != arrMagic {
		return nil, fmt.Errorf("arrivals: bad magic %q", hdr.Magic[:])
	}
	if hdr.Version != arrVersion {
		return nil, fmt.Errorf("arrivals: unsupported version %d", hdr.Version)
	}
	nTab := int64(hdr.NSx + hdr.NSy + hdr.NSz + hdr.NTheta + hdr.NRz + hdr.NRr)
	return &ArrCellReader{
		r:       r,
		hdr:     hdr,
		dataOff: hdrSize + 8*nTab,
		stride:  4 + int64(hdr.MaxNArr)*int64(binary.Size(Arrival{})),
	}, nil
}

// NCells reports the cell count recorded in the header.
func (c *ArrCellReader) NCells() int {
	n := int(c.hdr.NSz) * int(c.hdr.NRz) * int(c.hdr.NRr)
	if c.hdr.NTheta > 0 {
		n *= int(c.hdr.NTheta) * int(c.hdr.NSx) * int(c.hdr.NSy)
	}
	return n
}

// Cell returns the stored records of one cell, already clipped to its
// count.
func (c *ArrCellReader) Cell(index int) ([]Arrival, error) {
	if index < 0 || index >= c.NCells() {
		return nil, fmt.Errorf("arrivals: cell %d out of range [0,%d)", index, c.NCells())
	}
	sr := io.NewSectionReader(c.r, c.dataOff+int64(index)*c.stride, c.stride)
	var count int32
	if err := binary.Read(sr, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("arrivals cell %d: %w", index, err)
	}
	if count > c.hdr.MaxNArr {
		count = c.hdr.MaxNArr
	}
	recs := make([]Arrival, count)
	if err := binary.Read(sr, binary.LittleEndian, recs); err != nil {
		return nil, fmt.Errorf("arrivals cell %d: %w", index, err)
	}
	return recs, nil
}
