// Package checkpoint serializes model state dictionaries to a compact
// binary container.
//
// Layout (little-endian):
//
//	magic "LOOM" | version u32 | entry count u32
//	per entry: name len u16 | name | dtype u8 | ndim u8 | dims u32... | payload
//
// Payloads are float32 or, with Options.Half, float16 via
// github.com/x448/float16 to halve checkpoint size. Entries are written
// in sorted name order so identical states produce identical bytes.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

const (
	magic   = "LOOM"
	version = uint32(1)

	dtypeFloat32 = uint8(0)
	dtypeFloat16 = uint8(1)

	maxNameLen = 1 << 16
	maxDims    = 8
)

// Options controls serialization.
type Options struct {
	// Half stores payloads as float16. Loading always yields float32.
	Half bool
}

// Save writes a state dictionary to w.
func Save(sd nn.StateDict, w io.Writer, opts Options) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magic); err != nil {
		return errors.Wrap(err, "checkpoint: writing header")
	}
	if err := binary.Write(bw, binary.LittleEndian, version); err != nil {
		return errors.Wrap(err, "checkpoint: writing version")
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(sd))); err != nil {
		return errors.Wrap(err, "checkpoint: writing entry count")
	}

	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writeEntry(bw, name, sd[name], opts); err != nil {
			return errors.Wrapf(err, "checkpoint: writing %q", name)
		}
	}
	return errors.Wrap(bw.Flush(), "checkpoint: flushing")
}

func writeEntry(w io.Writer, name string, t *tensor.Tensor[float32], opts Options) error {
	if len(name) >= maxNameLen {
		return errors.Errorf("name too long (%d bytes)", len(name))
	}
	shape := t.Shape()
	if len(shape) > maxDims {
		return errors.Errorf("too many dimensions (%d)", len(shape))
	}

	if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}

	dtype := dtypeFloat32
	if opts.Half {
		dtype = dtypeFloat16
	}
	if err := binary.Write(w, binary.LittleEndian, dtype); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(shape))); err != nil {
		return err
	}
	for _, d := range shape {
		if err := binary.Write(w, binary.LittleEndian, uint32(d)); err != nil {
			return err
		}
	}

	data := t.Data()
	if opts.Half {
		buf := make([]uint16, len(data))
		for i, v := range data {
			buf[i] = float16.Fromfloat32(v).Bits()
		}
		return binary.Write(w, binary.LittleEndian, buf)
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// Load reads a state dictionary from r.
func Load(r io.Reader) (nn.StateDict, error) {
	br := bufio.NewReader(r)

	header := make([]byte, len(magic))
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, errors.Wrap(err, "checkpoint: reading header")
	}
	if string(header) != magic {
		return nil, errors.Errorf("checkpoint: bad magic %q", header)
	}

	var ver uint32
	if err := binary.Read(br, binary.LittleEndian, &ver); err != nil {
		return nil, errors.Wrap(err, "checkpoint: reading version")
	}
	if ver != version {
		return nil, errors.Errorf("checkpoint: unsupported version %d", ver)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(err, "checkpoint: reading entry count")
	}

	sd := nn.StateDict{}
	for i := uint32(0); i < count; i++ {
		name, t, err := readEntry(br)
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint: reading entry %d", i)
		}
		if _, dup := sd[name]; dup {
			return nil, errors.Errorf("checkpoint: duplicate entry %q", name)
		}
		sd[name] = t
	}
	return sd, nil
}

func readEntry(r io.Reader) (string, *tensor.Tensor[float32], error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return "", nil, err
	}
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return "", nil, err
	}

	var dtype, ndim uint8
	if err := binary.Read(r, binary.LittleEndian, &dtype); err != nil {
		return "", nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &ndim); err != nil {
		return "", nil, err
	}
	if ndim > maxDims {
		return "", nil, errors.Errorf("too many dimensions (%d)", ndim)
	}

	shape := make(tensor.Shape, ndim)
	for d := range shape {
		var dim uint32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return "", nil, err
		}
		shape[d] = int(dim)
	}

	n := shape.NumElements()
	data := make([]float32, n)
	switch dtype {
	case dtypeFloat32:
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return "", nil, err
		}
	case dtypeFloat16:
		buf := make([]uint16, n)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return "", nil, err
		}
		for i, bits := range buf {
			data[i] = float16.Frombits(bits).Float32()
		}
	default:
		return "", nil, errors.Errorf("unknown dtype %d", dtype)
	}

	t, err := tensor.New(data, shape)
	if err != nil {
		return "", nil, err
	}
	return string(nameBuf), t, nil
}

// SaveFile saves a state dictionary to path.
func SaveFile(sd nn.StateDict, path string, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "checkpoint: creating %s", path)
	}
	defer f.Close()
	if err := Save(sd, f, opts); err != nil {
		return err
	}
	return errors.Wrapf(f.Sync(), "checkpoint: syncing %s", path)
}

// LoadFile loads a state dictionary from path.
func LoadFile(path string) (nn.StateDict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: opening %s", path)
	}
	defer f.Close()
	return Load(f)
}
