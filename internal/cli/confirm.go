package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks the user to type "yes" before deleting ref.
func confirm(in io.Reader, out io.Writer, ref string) (bool, error) {
	fmt.Fprintf(out, "Are you sure you want to delete deployment '%s'?\n", ref)
	fmt.Fprintln(out, "This action cannot be undone. Use --yes to skip this prompt.")
	fmt.Fprint(out, "Type 'yes' to confirm: ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}
