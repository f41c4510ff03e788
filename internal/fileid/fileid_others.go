//go:build !unix

package fileid

func Get(name string) (ID, error) {
	return ID{}, ErrNotOS
}
