package wasm

// memoryOnlyModule is the smallest useful module: one exported page of
// linear memory and nothing else.
//
//	(module (memory (export "memory") 1))
var memoryOnlyModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

// spinningCommand is a command module whose _start never returns.
//
//	(module (func (export "_start") (loop (br 0))))
var spinningCommand = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: () -> ()
	0x03, 0x02, 0x01, 0x00, // function section
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00, // export "_start"
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b, // code: loop br 0
}

// stallingCleanup exports the allocator and a length query that spins
// forever on empty input and otherwise returns the input size.
//
//	(module
//	  (memory (export "memory") 1)
//	  (func (export "malloc") (param i32) (result i32) (i32.const 1024))
//	  (func (export "free") (param i32))
//	  (func (export "mupdf_clean_length") (param i32 i32 i32) (result i32)
//	    (if (i32.eqz (local.get 1)) (then (loop (br 0))))
//	    (local.get 1)))
var stallingCleanup = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	// type section: (i32)->i32, (i32)->(), (i32 i32 i32)->i32
	0x01, 0x11, 0x03,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,
	0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	// function section
	0x03, 0x04, 0x03, 0x00, 0x01, 0x02,
	// memory section
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export section
	0x07, 0x2f, 0x04,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x06, 'm', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x04, 'f', 'r', 'e', 'e', 0x00, 0x01,
	0x12, 'm', 'u', 'p', 'd', 'f', '_', 'c', 'l', 'e', 'a', 'n', '_', 'l', 'e', 'n', 'g', 't', 'h', 0x00, 0x02,
	// code section
	0x0a, 0x1a, 0x03,
	0x05, 0x00, 0x41, 0x80, 0x08, 0x0b,
	0x02, 0x00, 0x0b,
	0x0f, 0x00, 0x20, 0x01, 0x45, 0x04, 0x40, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b, 0x20, 0x01, 0x0b,
}
