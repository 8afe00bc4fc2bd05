/*
 * files.go, part of curcuma
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 */

package curcuma

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/awvwgk/curcuma/v3"
	"github.com/klauspost/compress/zstd"
)

//XYZIterator yields molecules one frame at a time from a multi-frame
//XYZ-family file (.xyz, .trj, optionally zstd-compressed as
//.xyz.zst). The energy is parsed from the comment line when present.
type XYZIterator struct {
	f      *os.File
	zr     *zstd.Decoder
	r      *bufio.Reader
	next   *Molecule
	err    error
	atEnd  bool
	frames int
}

//NewXYZIterator opens name and primes the first frame.
func NewXYZIterator(name string) (*XYZIterator, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errDecorate(err, "NewXYZIterator")
	}
	it := &XYZIterator{f: f}
	var reader io.Reader = f
	if strings.HasSuffix(name, ".zst") {
		it.zr, err = zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errDecorate(err, "NewXYZIterator")
		}
		reader = it.zr
	}
	it.r = bufio.NewReader(reader)
	it.advance()
	return it, nil
}

//AtEnd reports whether the iterator is exhausted.
func (it *XYZIterator) AtEnd() bool { return it.atEnd && it.next == nil }

//Next returns the next frame. After the last frame it returns an
//error; check AtEnd before calling.
func (it *XYZIterator) Next() (*Molecule, error) {
	if it.next == nil {
		if it.err != nil {
			return nil, it.err
		}
		return nil, NewError("XYZIterator.Next", "no more frames")
	}
	mol := it.next
	it.advance()
	return mol, nil
}

//Frames returns the number of frames read so far.
func (it *XYZIterator) Frames() int { return it.frames }

//Close releases the underlying file.
func (it *XYZIterator) Close() {
	if it.zr != nil {
		it.zr.Close()
	}
	it.f.Close()
}

func (it *XYZIterator) advance() {
	it.next = nil
	mol, err := readXYZFrame(it.r)
	if err != nil {
		if err == io.EOF {
			it.atEnd = true
			return
		}
		it.err = err
		it.atEnd = true
		return
	}
	it.next = mol
	it.frames++
}

//readXYZFrame reads one XYZ block from r. io.EOF signals a clean end
//of the trajectory.
func readXYZFrame(r *bufio.Reader) (*Molecule, error) {
	line, err := nextNonEmpty(r)
	if err != nil {
		return nil, err
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return nil, NewError("readXYZFrame", "ill-formatted XYZ atom count: "+line)
	}
	comment, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errDecorate(err, "readXYZFrame")
	}
	zs := make([]int, natoms)
	coords := v3.Zeros(natoms)
	for i := 0; i < natoms; i++ {
		line, err = r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errDecorate(err, "readXYZFrame")
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, NewError("readXYZFrame", fmt.Sprintf("atom line %d ill-formed: %q", i, line))
		}
		z := AtomicNumber(fields[0])
		if z == 0 {
			//some files carry atomic numbers instead of symbols
			if zi, cerr := strconv.Atoi(fields[0]); cerr == nil {
				z = zi
			} else {
				return nil, NewError("readXYZFrame", "unknown element "+fields[0])
			}
		}
		zs[i] = z
		for k := 0; k < 3; k++ {
			val, cerr := strconv.ParseFloat(fields[k+1], 64)
			if cerr != nil {
				return nil, NewError("readXYZFrame", "bad coordinate in line: "+line)
			}
			coords.Set(i, k, val)
		}
	}
	mol, err := NewMolecule(zs, coords)
	if err != nil {
		return nil, err
	}
	mol.SetName(strings.TrimSpace(firstField(comment)))
	if e, ok := energyFromComment(comment); ok {
		mol.SetEnergy(e)
	}
	return mol, nil
}

func nextNonEmpty(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
		if err != nil {
			return "", io.EOF
		}
	}
}

func firstField(comment string) string {
	fields := strings.Fields(comment)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

//energyFromComment extracts the energy from the comment line. An
//"Energy = <value>" marker wins; otherwise the first parseable float
//is taken, the convention of most XYZ-writing programs.
func energyFromComment(comment string) (float64, bool) {
	fields := strings.Fields(comment)
	for i, f := range fields {
		if strings.EqualFold(f, "energy") || strings.EqualFold(f, "energy=") {
			for _, candidate := range fields[i+1:] {
				if candidate == "=" {
					continue
				}
				if v, err := strconv.ParseFloat(candidate, 64); err == nil {
					return v, true
				}
				break
			}
		}
	}
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

//ReadXYZ reads the first frame of an XYZ file.
func ReadXYZ(name string) (*Molecule, error) {
	it, err := NewXYZIterator(name)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	if it.AtEnd() {
		return nil, NewError("ReadXYZ", "empty XYZ file "+name)
	}
	return it.Next()
}

//ReadEnsemble reads all frames of an XYZ file.
func ReadEnsemble(name string) ([]*Molecule, error) {
	it, err := NewXYZIterator(name)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var mols []*Molecule
	for !it.AtEnd() {
		mol, err := it.Next()
		if err != nil {
			return nil, err
		}
		mols = append(mols, mol)
	}
	return mols, nil
}

//WriteXYZ writes the molecule to name, truncating any previous file.
func (M *Molecule) WriteXYZ(name string) error {
	return M.writeXYZ(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

//AppendXYZ appends the molecule as one more frame of name.
func (M *Molecule) AppendXYZ(name string) error {
	return M.writeXYZ(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func (M *Molecule) writeXYZ(name string, flags int) error {
	f, err := os.OpenFile(name, flags, 0644)
	if err != nil {
		return errDecorate(err, "writeXYZ")
	}
	defer f.Close()
	_, err = f.WriteString(M.XYZString())
	return err
}

//TrajWriter appends XYZ frames to a trajectory file, optionally
//through a zstd compressor when the filename ends in .zst.
type TrajWriter struct {
	f  *os.File
	zw *zstd.Encoder
	w  io.Writer
}

//NewTrajWriter creates (or truncates) a trajectory file.
func NewTrajWriter(name string) (*TrajWriter, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, errDecorate(err, "NewTrajWriter")
	}
	t := &TrajWriter{f: f, w: f}
	if strings.HasSuffix(name, ".zst") {
		t.zw, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, errDecorate(err, "NewTrajWriter")
		}
		t.w = t.zw
	}
	return t, nil
}

//WNext appends one frame.
func (t *TrajWriter) WNext(mol *Molecule) error {
	_, err := io.WriteString(t.w, mol.XYZString())
	return err
}

//Close flushes the compressor, if any, and closes the file.
func (t *TrajWriter) Close() error {
	if t.zw != nil {
		if err := t.zw.Close(); err != nil {
			t.f.Close()
			return err
		}
	}
	return t.f.Close()
}
