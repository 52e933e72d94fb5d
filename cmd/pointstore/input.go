package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"

	"github.com/hupe1980/pointstore/model"
)

// readPoints loads a LAS or CSV file by extension.
func readPoints(path string) (*model.Buffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las":
		return readLAS(path)
	case ".csv", ".txt", ".xyz":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSV(f)
	default:
		return nil, fmt.Errorf("do not know how to read file %q", path)
	}
}

func readLAS(path string) (*model.Buffer, error) {
	lf, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	buf := model.NewBuffer(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, fmt.Errorf("las point %d: %w", i, err)
		}
		data := p.PointData()
		pt := model.Point{X: data.X, Y: data.Y, Z: data.Z, Intensity: data.Intensity}
		if p.IsGpsData() {
			pt.Time = p.GpsTimeData()
		}
		buf.Append(pt)
	}
	return buf, nil
}

// readCSV parses "x,y,z[,intensity[,time]]" rows. A first row that does not
// parse as numbers is treated as a header.
func readCSV(r io.Reader) (*model.Buffer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	buf := model.NewBuffer(1024)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := parseRecord(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		buf.Append(p)
	}
	return buf, nil
}

func parseRecord(rec []string) (model.Point, error) {
	if len(rec) < 3 || len(rec) > 5 {
		return model.Point{}, fmt.Errorf("want 3 to 5 fields, got %d", len(rec))
	}
	var v [3]float64
	for i := range v {
		f, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return model.Point{}, err
		}
		v[i] = f
	}
	p := model.Point{X: v[0], Y: v[1], Z: v[2]}
	if len(rec) > 3 {
		n, err := strconv.ParseUint(rec[3], 10, 16)
		if err != nil {
			return model.Point{}, fmt.Errorf("intensity: %w", err)
		}
		p.Intensity = uint16(n)
	}
	if len(rec) > 4 {
		t, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return model.Point{}, fmt.Errorf("time: %w", err)
		}
		p.Time = t
	}
	return p, nil
}

// writeCSV prints points in the format readCSV accepts as they arrive. It
// returns the number of rows written and stops at the first error.
func writeCSV(w io.Writer, points iter.Seq2[model.Point, error], withTime bool) (int, error) {
	cw := csv.NewWriter(w)
	rec := make([]string, 0, 5)
	n := 0
	for p, err := range points {
		if err != nil {
			cw.Flush()
			return n, err
		}
		rec = append(rec[:0],
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
			strconv.FormatFloat(p.Z, 'f', -1, 64),
			strconv.FormatUint(uint64(p.Intensity), 10),
		)
		if withTime {
			rec = append(rec, strconv.FormatFloat(p.Time, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// parseBBox parses "minx,miny,minz,maxx,maxy,maxz".
func parseBBox(s string) (model.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return model.BBox{}, fmt.Errorf("bbox needs 6 comma-separated values, got %d", len(parts))
	}
	var v [6]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("bbox value %d: %w", i, err)
		}
		v[i] = f
	}
	return model.NewBBox(v[0], v[1], v[2], v[3], v[4], v[5]), nil
}

// parseFilter parses "attr:min:max". An empty bound is unbounded.
func parseFilter(s string) (attr model.Attribute, lo, hi float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("filter %q: want attr:min:max", s)
	}
	attr, err = model.ParseAttribute(parts[0])
	if err != nil {
		return 0, 0, 0, err
	}
	lo, hi = math.Inf(-1), math.Inf(1)
	if parts[1] != "" {
		if lo, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, 0, 0, fmt.Errorf("filter %q min: %w", s, err)
		}
	}
	if parts[2] != "" {
		if hi, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, 0, 0, fmt.Errorf("filter %q max: %w", s, err)
		}
	}
	return attr, lo, hi, nil
}
