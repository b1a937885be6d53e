package sandbox

import "strings"

// Token and Extension are capability tags used to document how an example
// contract composes behavior (spec Design Notes "class inheritance ->
// interface+composition"). The runtime itself only ever executes script
// source; these tags are not enforced by the runtime, they are a naming
// convention a contract source may declare in a leading
// "// capabilities: ..." comment line, which `contract deploy` reports.
type Capability string

const (
	// CapabilityToken marks a contract that behaves like a fungible token
	// ledger: mint, burn, transfer, balanceOf (spec §8 S1).
	CapabilityToken Capability = "token"
	// CapabilityExtension marks a contract that wraps or augments another
	// deployed contract's behavior rather than holding its own ledger
	// (spec §8 S2's GoldCoin composing a base token).
	CapabilityExtension Capability = "extension"
)

// Capabilities is the declared capability set of a contract source,
// parsed from a leading "// capabilities: token, extension" comment line
// if present. It carries no runtime effect; Analyze and Runtime never
// consult it.
type Capabilities []Capability

// Has reports whether c is present in the set.
func (cs Capabilities) Has(c Capability) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// ParseCapabilities scans source for a leading "// capabilities: ..." line
// and returns the tags it declares, in order, skipping any blank lines
// before it. Only the first matching line is honored; it must appear
// before the first non-comment, non-blank line, mirroring how a package
// doc comment must lead a Go file.
func ParseCapabilities(source string) Capabilities {
	const prefix = "capabilities:"
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "//") {
			return nil
		}
		body := strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))
		if !strings.HasPrefix(body, prefix) {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(body, prefix), ",")
		caps := make(Capabilities, 0, len(fields))
		for _, f := range fields {
			f = strings.TrimSpace(f)
			if f != "" {
				caps = append(caps, Capability(f))
			}
		}
		return caps
	}
	return nil
}
