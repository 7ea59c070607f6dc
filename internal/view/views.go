// Package view renders the client's pages as text.
package view

import (
	"fmt"
	"io"

	"github.com/and161185/allin/internal/uistate"
)

// Header shows the login prompt, or a greeting once a profile is loaded.
func Header(w io.Writer, st uistate.State) error {
	if st.Profile == nil {
		_, err := fmt.Fprintln(w, "[ Login ]")
		return err
	}
	_, err := fmt.Fprintf(w, "Hi, %s\n", st.Profile.Username())
	return err
}

// Body shows a loading placeholder while the profile is being fetched.
func Body(w io.Writer, st uistate.State) error {
	if st.ProfileLoading {
		_, err := fmt.Fprintln(w, "Loading profile...")
		return err
	}
	return Header(w, st)
}

// About is the static about page.
func About(w io.Writer, _ uistate.State) error {
	_, err := fmt.Fprintln(w, "AllIn: sign in to see your profile.")
	return err
}

// Login describes the sign-in form and how to switch to sign-up.
func Login(w io.Writer, _ uistate.State) error {
	_, err := fmt.Fprint(w, "Sign In\n  email, password\n  New to AllIn? Sign Up Now (register -n NAME -e EMAIL -p PASSWORD)\n")
	return err
}

// NotFound is the catch-all page.
func NotFound(w io.Writer, _ uistate.State) error {
	_, err := fmt.Fprintln(w, "404: page not found")
	return err
}

// LoginModal renders the modal visibility line.
func LoginModal(w io.Writer, st uistate.State) error {
	if !st.ShowLoginModal {
		return nil
	}
	_, err := fmt.Fprintln(w, "(login form open)")
	return err
}
