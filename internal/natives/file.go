package natives

import (
	"context"
	"io"
	"os"

	"github.com/roach88/weft/internal/code"
	"github.com/roach88/weft/internal/iop"
	"github.com/roach88/weft/internal/ir"
)

// ModuleFile holds whole-file helpers and File resource operations.
const ModuleFile = "file"

// noRsrc marks operations without a resource parameter.
const noRsrc = -1

func (r *Registry) registerFile() {
	r.add(ModuleFile, code.Iop(qualified(ModuleFile, "read_file"), fileReadFile, noRsrc))
	r.add(ModuleFile, code.Iop(qualified(ModuleFile, "write_file"), fileWriteFile, noRsrc))
	r.add(ModuleFile, code.Iop(qualified(ModuleFile, "open"), fileOpen, noRsrc))
	r.add(ModuleFile, code.Iop(qualified(ModuleFile, "read"), fileRead, 0))
	r.add(ModuleFile, code.ClosingIop(qualified(ModuleFile, "close"), fileClose, 0))
}

// fileReadFile reads a whole file: read_file(path) -> Str.
func fileReadFile(c *iop.Ctx) iop.Outcome {
	a := newArgs("file.read_file", c.Params())
	path := a.strArg(0)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	return iop.Blocking{Run: func(ctx context.Context) iop.Outcome {
		data, err := os.ReadFile(path)
		if err != nil {
			return iop.Result{Value: ioFailure("file.read_file", err)}
		}
		return iop.Result{Value: ir.Str(data)}
	}}
}

// fileWriteFile replaces a file's contents: write_file(path, text) -> Int.
func fileWriteFile(c *iop.Ctx) iop.Outcome {
	a := newArgs("file.write_file", c.Params())
	path, text := a.strArg(0), a.strArg(1)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	return iop.Blocking{Run: func(ctx context.Context) iop.Outcome {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return iop.Result{Value: ioFailure("file.write_file", err)}
		}
		return iop.Result{Value: ir.Int(len(text))}
	}}
}

// fileOpen opens a file for reading: open(path) -> File.
func fileOpen(c *iop.Ctx) iop.Outcome {
	a := newArgs("file.open", c.Params())
	path := a.strArg(0)
	if !a.ok() {
		return iop.Result{Value: a.failure()}
	}

	return iop.Blocking{Run: func(ctx context.Context) iop.Outcome {
		f, err := os.Open(path)
		if err != nil {
			return iop.Result{Value: ioFailure("file.open", err)}
		}
		return iop.NewResource{Rsrc: &iop.File{F: f}}
	}}
}

// fileRead reads the rest of an open file: read(file) -> Str.
// The file is handed back for further reads.
func fileRead(c *iop.Ctx) iop.Outcome {
	f, err := iop.TakeAs[*iop.File](c)
	if err != nil {
		return iop.Fail(ir.TagTypeMismatch, "file.read: "+err.Error(), nil)
	}

	return iop.Blocking{Rsrc: f, Run: func(ctx context.Context) iop.Outcome {
		data, err := io.ReadAll(f.F)
		if err != nil {
			return iop.Result{Value: ioFailure("file.read", err), Rsrc: f}
		}
		return iop.Result{Value: ir.Str(data), Rsrc: f}
	}}
}

// fileClose consumes a File: close(file) -> Void.
func fileClose(c *iop.Ctx) iop.Outcome {
	f, err := iop.TakeAs[*iop.File](c)
	if err != nil {
		return iop.Fail(ir.TagTypeMismatch, "file.close: "+err.Error(), nil)
	}
	if err := f.Close(); err != nil {
		return iop.Result{Value: ioFailure("file.close", err)}
	}
	return iop.Result{Value: ir.Void{}}
}
