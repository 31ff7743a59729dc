package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable creates a read-only platform table and injects it into the Lua state as a global.
// This should be called before loading any user configuration code.
//
// A config can then pick values per host, for example:
//
//	jrefetch = {
//	  parallelism = platform.when(platform.is_arm64, 4),
//	}
func InjectPlatformTable(L *lua.LState, info *Info) error {
	// Create the main platform table
	platformTable := L.NewTable()

	// Canonical identifier, as sent to the runtime providers
	// ("linux", "mac-os-arm64", "windows-x64", ...)
	L.SetField(platformTable, "id", lua.LString(info.CanonicalID()))

	// Basic OS and architecture. arch is the normalized build architecture;
	// kernel is what the host reports and may differ (a 32-bit userland on a
	// 64-bit kernel).
	L.SetField(platformTable, "os", lua.LString(info.OS))
	L.SetField(platformTable, "arch", lua.LString(info.Arch))
	L.SetField(platformTable, "kernel", lua.LString(info.Kernel))

	// OS booleans
	L.SetField(platformTable, "is_linux", lua.LBool(info.IsLinux()))
	L.SetField(platformTable, "is_macos", lua.LBool(info.IsMacOS()))
	L.SetField(platformTable, "is_windows", lua.LBool(info.IsWindows()))

	// Architecture booleans
	L.SetField(platformTable, "is_amd64", lua.LBool(info.IsAMD64()))
	L.SetField(platformTable, "is_arm64", lua.LBool(info.IsARM64()))
	L.SetField(platformTable, "is_apple_silicon", lua.LBool(info.IsAppleSilicon()))

	// Linux distribution (nil on other systems or when it could not be read)
	if info.Distro != "" {
		distroTable := L.NewTable()
		L.SetField(distroTable, "id", lua.LString(info.Distro))
		L.SetField(distroTable, "version", lua.LString(info.Version))
		L.SetField(platformTable, "distro", distroTable)
	} else {
		L.SetField(platformTable, "distro", lua.LNil)
	}

	// Helper function: when(condition, value)
	// Returns value if condition is true, nil otherwise. A nil field falls
	// back to the default when the config is extracted.
	whenFunc := L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})
	L.SetField(platformTable, "when", whenFunc)

	// Expose only a read-only proxy so a config cannot lie about the host
	L.SetGlobal("platform", makeReadOnly(L, platformTable))

	return nil
}

// makeReadOnly makes a Lua table read-only by creating a proxy table with a metatable.
// The proxy redirects reads to the original table but prevents all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()

	// Reads fall through to the real table
	L.SetField(mt, "__index", table)

	// Writes fail, whether the key exists or not; the proxy itself is
	// empty so every assignment reaches __newindex
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))

	// getmetatable returns this string and setmetatable refuses to replace it
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)

	return proxy
}
