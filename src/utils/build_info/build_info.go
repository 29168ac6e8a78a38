package build_info

// Filled in by the linker upon release
var (
	Version   = "dev"
	BuildDate = ""
)
