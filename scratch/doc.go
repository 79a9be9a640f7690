// Package scratch manages request-scoped temporary files on the local
// filesystem.
//
// Each File is owned by exactly one caller and removed on Release. With
// guarantees release on every exit path, including panics:
//
//	err := store.With(ctx, ".part", func(ctx context.Context, f *scratch.File) error {
//	    _, err := io.Copy(f, body)
//	    return err
//	})
//
// Store implements component.Component. Start sweeps files left behind by a
// previous process that died before it could release them.
package scratch
