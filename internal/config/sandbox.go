package config

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM configures a Lua VM to run a jrefetch config in a restricted
// sandbox. It disables every function that could:
// - Run commands or end the process (os.execute, os.exit)
// - Touch the filesystem (io.open, io.popen)
// - Pull in code from elsewhere (require, dofile, loadfile, load, loadstring)
// - Inspect or patch the VM itself (debug)
//
// A config only declares where runtimes go and how they are fetched, so it
// never needs any of these.
func sandboxLuaVM(L *lua.LState) {
	// Remove the os library completely (os.execute, os.exit, os.getenv, ...).
	// Paths such as install_root are expanded by Go after parsing instead.
	L.SetGlobal("os", lua.LNil)

	// Remove the io library completely (io.open, io.popen, io.read, ...)
	L.SetGlobal("io", lua.LNil)

	// Remove module and chunk loading
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	// Remove the debug library; debug.setmetatable would unlock the
	// read-only platform table.
	L.SetGlobal("debug", lua.LNil)

	// Kept on purpose, all side-effect free:
	// - string, for building provider URLs
	// - table and math, for computing values such as parallelism
	// - type, tostring, tonumber, pairs, ipairs, next and friends
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
// Every config parse goes through here.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
