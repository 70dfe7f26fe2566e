// Package wasmbin assembles small core WebAssembly modules for tests.
package wasmbin

// Value types
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

const (
	magic   = 0x6d736100
	version = 1

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10

	kindFunc   = 0x00
	kindMemory = 0x02

	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opI32Load     = 0x28
	opI32Const    = 0x41
	opEnd         = 0x0b
)

// Import is an imported function.
type Import struct {
	Module  string
	Name    string
	Params  []byte
	Results []byte
}

// WASI and Emscripten imports used by test guests.
var (
	ProcExit = Import{Module: "wasi_snapshot_preview1", Name: "proc_exit", Params: []byte{I32}}

	EnvironGet = Import{
		Module:  "wasi_snapshot_preview1",
		Name:    "environ_get",
		Params:  []byte{I32, I32},
		Results: []byte{I32},
	}

	EnvironSizesGet = Import{
		Module:  "wasi_snapshot_preview1",
		Name:    "environ_sizes_get",
		Params:  []byte{I32, I32},
		Results: []byte{I32},
	}

	PathOpen = Import{
		Module:  "wasi_snapshot_preview1",
		Name:    "path_open",
		Params:  []byte{I32, I32, I32, I32, I32, I64, I64, I32, I32},
		Results: []byte{I32},
	}

	Unwinder = Import{Module: "env", Name: "emscripten_unwind_to_js_event_loop"}
)

// Func is a defined function. Body holds instructions without the
// trailing end opcode. A non-empty Export name exports the function.
type Func struct {
	Export  string
	Params  []byte
	Results []byte
	Body    []byte
}

// Module is a core module under construction.
type Module struct {
	Imports []Import
	Funcs   []Func
	Memory  bool
}

// Import appends imp and returns m. Appending keeps existing import
// indices stable.
func (m *Module) Import(imp Import) *Module {
	m.Imports = append(m.Imports, imp)
	return m
}

// Encode returns the binary encoding of m.
func (m *Module) Encode() []byte {
	w := &writer{}
	w.u32le(magic)
	w.u32le(version)

	types := &writer{}
	types.u32(uint32(len(m.Imports) + len(m.Funcs)))
	for _, imp := range m.Imports {
		types.byte(0x60)
		types.valTypes(imp.Params)
		types.valTypes(imp.Results)
	}
	for _, fn := range m.Funcs {
		types.byte(0x60)
		types.valTypes(fn.Params)
		types.valTypes(fn.Results)
	}
	w.section(sectionType, types.bytes())

	if len(m.Imports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Imports)))
		for i, imp := range m.Imports {
			sec.name(imp.Module)
			sec.name(imp.Name)
			sec.byte(kindFunc)
			sec.u32(uint32(i))
		}
		w.section(sectionImport, sec.bytes())
	}

	if len(m.Funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Funcs)))
		for i := range m.Funcs {
			sec.u32(uint32(len(m.Imports) + i))
		}
		w.section(sectionFunction, sec.bytes())
	}

	if m.Memory {
		sec := &writer{}
		sec.u32(1)
		sec.byte(0x00)
		sec.u32(1)
		w.section(sectionMemory, sec.bytes())
	}

	exports := &writer{}
	count := uint32(0)
	for i, fn := range m.Funcs {
		if fn.Export == "" {
			continue
		}
		exports.name(fn.Export)
		exports.byte(kindFunc)
		exports.u32(uint32(len(m.Imports) + i))
		count++
	}
	if m.Memory {
		exports.name("memory")
		exports.byte(kindMemory)
		exports.u32(0)
		count++
	}
	if count > 0 {
		sec := &writer{}
		sec.u32(count)
		sec.write(exports.bytes())
		w.section(sectionExport, sec.bytes())
	}

	if len(m.Funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Funcs)))
		for _, fn := range m.Funcs {
			body := &writer{}
			body.u32(0) // no locals
			body.write(fn.Body)
			body.byte(opEnd)
			sec.u32(uint32(len(body.bytes())))
			sec.write(body.bytes())
		}
		w.section(sectionCode, sec.bytes())
	}

	return w.bytes()
}

// Code builds instruction sequences.
type Code struct {
	w writer
}

func (c *Code) I32Const(v int32) *Code {
	c.w.byte(opI32Const)
	c.w.s64(int64(v))
	return c
}

func (c *Code) Call(idx uint32) *Code {
	c.w.byte(opCall)
	c.w.u32(idx)
	return c
}

func (c *Code) Drop() *Code {
	c.w.byte(opDrop)
	return c
}

// I32Load loads from the address on the stack with 4-byte alignment.
func (c *Code) I32Load(offset uint32) *Code {
	c.w.byte(opI32Load)
	c.w.u32(2)
	c.w.u32(offset)
	return c
}

func (c *Code) Unreachable() *Code {
	c.w.byte(opUnreachable)
	return c
}

func (c *Code) Bytes() []byte {
	return append([]byte(nil), c.w.bytes()...)
}

func start(body []byte) Func {
	return Func{Export: "_start", Body: body}
}

// Noop returns a guest whose _start returns immediately.
func Noop() *Module {
	return &Module{Funcs: []Func{start(nil)}}
}

// Exit returns a guest whose _start calls proc_exit(code).
func Exit(code int32) *Module {
	return &Module{
		Imports: []Import{ProcExit},
		Funcs:   []Func{start((&Code{}).I32Const(code).Call(0).Bytes())},
	}
}

// Trap returns a guest whose _start executes unreachable.
func Trap() *Module {
	return &Module{Funcs: []Func{start((&Code{}).Unreachable().Bytes())}}
}

// Unwind returns a guest whose _start unwinds to the host event loop.
func Unwind() *Module {
	return &Module{
		Imports: []Import{Unwinder},
		Funcs:   []Func{start((&Code{}).Call(0).Bytes())},
	}
}

// EnvCount returns a guest that exits with the number of environment
// variables it was started with.
func EnvCount() *Module {
	code := (&Code{}).
		I32Const(0).I32Const(4).Call(0).Drop().
		I32Const(0).I32Load(0).Call(1)
	return &Module{
		Imports: []Import{EnvironSizesGet, ProcExit, EnvironGet},
		Funcs:   []Func{start(code.Bytes())},
		Memory:  true,
	}
}

// Library returns a side module exporting a function name that returns
// value.
func Library(name string, value int32) *Module {
	return &Module{Funcs: []Func{{
		Export:  name,
		Results: []byte{I32},
		Body:    (&Code{}).I32Const(value).Bytes(),
	}}}
}
