// Package sandbox implements the Safety Analyzer and Sandbox Runtime
// (spec §4.4, §4.5). The analyzer is a lexical/token-level static filter —
// generalized from the teacher's allow/deny role-list idiom in
// core/access_control.go (GrantRole/HasRole over a fixed table) from
// address-level access control to source-level access control.
package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// allowedNamespaceRoots are the only "use directive" prefixes a contract
// may declare, matching spec §4.4's category list: system numerics,
// collection generics, text, JSON text, compression, LINQ-equivalent
// sequence operators, threading/tasks, diagnostics, HTTP client, XML.
var allowedNamespaceRoots = []string{
	"System.Numerics",
	"System.Collections.Generic",
	"System.Text.Json",
	"System.Text",
	"System.IO.Compression",
	"System.Linq",
	"System.Threading.Tasks",
	"System.Diagnostics",
	"System.Net.Http",
	"System.Xml",
}

// denylistedKeywords reject any block or construct spec §4.4 forbids
// outright regardless of context.
var denylistedKeywords = []string{
	"unsafe", "extern", "dynamic", "goto", "volatile", "fixed", "stackalloc",
}

// denylistedTypes name forbidden receiver types for member access or
// construction (file/directory/process/socket/thread/assembly/registry/
// stream/reflection/marshal, spec §4.4).
var denylistedTypes = []string{
	"File", "Directory", "Process", "Socket", "Thread", "Assembly",
	"Registry", "Stream", "FileStream", "MemoryStream", "Reflection", "Marshal",
}

// denylistedMethods reject the specific method names spec §4.4 enumerates,
// regardless of receiver.
var denylistedMethods = []string{
	"Start", "Invoke", "Load", "Delete", "Move", "Copy", "ReadAllBytes",
	"WriteAllBytes", "GetType", "CreateDomain", "Execute", "WriteAllText",
	"ReadAllText", "Encrypt", "Decrypt", "OpenSubKey", "CreateSubKey",
	"Bind", "Connect", "Listen", "Send", "Receive", "LoadFrom", "LoadFile",
	"LoadLibrary",
}

var (
	useDirectiveRe = regexp.MustCompile(`(?m)^\s*using\s+([A-Za-z0-9_.]+)\s*;`)
	dllImportRe    = regexp.MustCompile(`\[\s*DllImport\b`)
	keywordRe      = buildWordListRegex(denylistedKeywords)
	typeMemberRe   = buildTypeMemberRegex(denylistedTypes)
	methodCallRe   = buildMethodCallRegex(denylistedMethods)
)

func buildWordListRegex(words []string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(` + strings.Join(escaped, "|") + `)\b`)
}

func buildTypeMemberRegex(types []string) *regexp.Regexp {
	escaped := make([]string, len(types))
	for i, w := range types {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(` + strings.Join(escaped, "|") + `)\s*\.\s*\w+`)
}

// buildMethodCallRegex matches a denylisted method name only when called as
// a member access (`receiver.Method(`), per spec §4.4's "object construction
// or member access naming a denylisted type... or denylisted method". A bare
// call/declaration of the same name — notably the contract's own mandatory
// `Execute(inputs, state)` entry point — is not a member access and must not
// trip this check.
func buildMethodCallRegex(methods []string) *regexp.Regexp {
	escaped := make([]string, len(methods))
	for i, w := range methods {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\.\s*(` + strings.Join(escaped, "|") + `)\s*\(`)
}

// Violation names the first offending construct found by Analyze, with a
// human-readable reason (spec §4.4 "each rejection returns a human-readable
// reason naming the first offending construct").
type Violation struct {
	Construct string
	Reason    string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Construct, v.Reason)
}

// Analyze statically scans contract source (or a per-invocation input
// treated as a textual statement, spec §4.4) and returns the first
// violation found, or nil if the source is clean.
func Analyze(source string) *Violation {
	if v := checkUseDirectives(source); v != nil {
		return v
	}
	if m := keywordRe.FindString(source); m != "" {
		return &Violation{Construct: m, Reason: "forbidden unsafe/extern/dynamic/goto/volatile/fixed/stackalloc construct"}
	}
	if dllImportRe.MatchString(source) {
		return &Violation{Construct: "[DllImport]", Reason: "platform-invoke attributes are forbidden"}
	}
	if m := typeMemberRe.FindString(source); m != "" {
		return &Violation{Construct: strings.TrimSpace(m), Reason: "member access on a denylisted type"}
	}
	if m := methodCallRe.FindString(source); m != "" {
		name := strings.TrimRight(strings.TrimLeft(m, ". \t"), "( \t")
		return &Violation{Construct: name, Reason: "call to a denylisted method"}
	}
	return nil
}

func checkUseDirectives(source string) *Violation {
	for _, match := range useDirectiveRe.FindAllStringSubmatch(source, -1) {
		ns := match[1]
		if !namespaceAllowed(ns) {
			return &Violation{
				Construct: "using " + ns,
				Reason:    "use directive namespace root is not in the allowlist",
			}
		}
	}
	return nil
}

func namespaceAllowed(ns string) bool {
	for _, root := range allowedNamespaceRoots {
		if ns == root || strings.HasPrefix(ns, root+".") {
			return true
		}
	}
	return false
}

// AnalyzeInputs runs Analyze over each per-invocation input string,
// returning the first violation found across all of them (spec §4.4 "this
// check runs before compilation and before each execution over the
// inputs").
func AnalyzeInputs(inputs []string) *Violation {
	for _, in := range inputs {
		if v := Analyze(in); v != nil {
			return v
		}
	}
	return nil
}
