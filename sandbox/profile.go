package sandbox

import "strings"

// profileBuilder constructs an SBPL (Sandbox Profile Language) profile for
// /usr/bin/sandbox-exec from the declared path surface. SBPL uses
// Scheme-like S-expression syntax.
type profileBuilder struct {
	buf strings.Builder
}

// buildSeatbeltProfile generates a deny-default profile allowing process
// basics, reads of the declared read-only and writable paths, and writes of
// the writable paths only.
func buildSeatbeltProfile(paths Paths) string {
	b := &profileBuilder{}
	b.line("(version 1)")
	b.line("(deny default)")
	b.blank()
	b.comment("Allow basic process operations")
	b.line("(allow process-fork)")
	b.line("(allow process-exec)")
	b.line("(allow signal (target self))")
	b.line("(allow sysctl-read)")
	b.blank()

	b.comment("Read-only system surface for dynamic linking and locale")
	b.line("(allow file-read*")
	for _, p := range []string{"/usr/lib", "/usr/share", "/System", "/bin", "/usr/bin", "/sbin", "/usr/sbin", "/dev/null", "/dev/urandom", "/private/etc"} {
		b.line(`  (subpath "` + escapeSBPL(p) + `")`)
	}
	b.line(")")
	b.blank()

	if len(paths.ReadOnly) > 0 || len(paths.Writable) > 0 {
		b.comment("Declared readable paths")
		b.line("(allow file-read*")
		for _, p := range paths.ReadOnly {
			b.line(`  (subpath "` + escapeSBPL(p) + `")`)
		}
		for _, p := range paths.Writable {
			b.line(`  (subpath "` + escapeSBPL(p) + `")`)
		}
		b.line(")")
	}
	if len(paths.Writable) > 0 {
		b.comment("Declared writable paths")
		b.line("(allow file-write*")
		for _, p := range paths.Writable {
			b.line(`  (subpath "` + escapeSBPL(p) + `")`)
		}
		b.line(")")
	}
	b.blank()
	b.comment("Network access is denied by the default rule")
	return b.buf.String()
}

func (b *profileBuilder) line(s string) {
	b.buf.WriteString(s)
	b.buf.WriteByte('\n')
}

func (b *profileBuilder) comment(s string) {
	b.line("; " + s)
}

func (b *profileBuilder) blank() {
	b.buf.WriteByte('\n')
}

// escapeSBPL escapes quotes and backslashes for embedding a path in an
// SBPL string literal.
func escapeSBPL(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	return strings.ReplaceAll(p, `"`, `\"`)
}
