// Package config loads the bridge configuration.
//
// Configuration comes from three layers, later ones overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. DBGBRIDGE_* environment variables
//
// A TOML file looks like:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[session]
//	command = "gdb"
//	args = ["-q", "-nx"]
//	max_buffer = 1048576
//
//	[[dialect]]
//	name = "pydb"
//	base = "gdb"
//	language = "python"
//	remove_capabilities = ["registers", "examine"]
//	info_parser = "pydb_breaks.lua"
//
//	[dialect.prompt]
//	literal = "(Pydb)"
//
// Dialect entries derive new debugger profiles from a built-in one.
// BuildDialects turns them into registries for the session layer.
// Watcher reloads the file when it changes on disk.
package config
