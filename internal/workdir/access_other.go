//go:build !unix

package workdir

func checkAccess(string) error {
	return nil
}
