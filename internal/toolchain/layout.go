// Package toolchain wraps the external Cairo proving toolchain: the Cairo
// compiler, the Cairo VM runner and the Stone cpu_air_prover. Each tool is a
// pre-built binary driven over a process boundary; this package owns the
// argument conventions and turns nonzero exits into typed errors.
package toolchain

import "fmt"

// Layout names a hardware/constraint profile of the prover. It selects which
// trace columns and polynomial structure the proving system uses.
type Layout string

const (
	LayoutDex                   Layout = "dex"
	LayoutRecursive             Layout = "recursive"
	LayoutRecursiveWithPoseidon Layout = "recursive_with_poseidon"
	LayoutSmall                 Layout = "small"
	LayoutStarknet              Layout = "starknet"
	LayoutStarknetWithKeccak    Layout = "starknet_with_keccak"

	// LayoutDynamic is a special layout whose column structure comes from an
	// extra cairo_layout_params.json file. It is not part of the default set.
	LayoutDynamic Layout = "dynamic"
)

// DefaultLayouts returns the fixed ordered set of layouts processed by the
// pipeline. LayoutDynamic is deliberately excluded.
func DefaultLayouts() []Layout {
	return []Layout{
		LayoutDex,
		LayoutRecursive,
		LayoutRecursiveWithPoseidon,
		LayoutSmall,
		LayoutStarknet,
		LayoutStarknetWithKeccak,
	}
}

// ParseLayout validates a layout name.
func ParseLayout(name string) (Layout, error) {
	switch Layout(name) {
	case LayoutDex, LayoutRecursive, LayoutRecursiveWithPoseidon,
		LayoutSmall, LayoutStarknet, LayoutStarknetWithKeccak, LayoutDynamic:
		return Layout(name), nil
	}
	return "", fmt.Errorf("unknown layout %q", name)
}

// IsDynamic reports whether the layout needs a cairo_layout_params.json file.
func (l Layout) IsDynamic() bool {
	return l == LayoutDynamic
}

func (l Layout) String() string {
	return string(l)
}
