package student

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// imageSeparator separates image names in a stored image credential.
const imageSeparator = ","

// LoginImageCatalogue lists the pictures a student can pick from on the image login screen.
var LoginImageCatalogue = []string{
	"apple", "ball", "bike", "car", "cat", "dog", "fish", "flower",
	"house", "moon", "star", "sun", "tree", "umbrella",
}

var errInvalidCredentials = errors.New("invalid credentials")

// MatchImageSequence reports whether the selected images are exactly the stored credential:
// same length and the same (case-sensitive) name at every position. Order matters.
func MatchImageSequence(stored string, selected []string) bool {
	if stored == "" {
		return false
	}
	expected := strings.Split(stored, imageSeparator)
	if len(expected) != len(selected) {
		return false
	}
	for i := range expected {
		if expected[i] != selected[i] {
			return false
		}
	}
	return true
}

// JoinImageSequence builds the stored form of an image credential.
func JoinImageSequence(images []string) string {
	return strings.Join(images, imageSeparator)
}

func (s *Student) SetPIN(pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PINHash = hash
	return nil
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) SetImageSequence(images []string) {
	s.ImageCredential = JoinImageSequence(images)
}

// SetCredentials stores the secret matching lt and switches the Student to that login type.
// Secrets of other login types are cleared.
func (s *Student) SetCredentials(lt LoginType, creds Credentials) error {
	s.PINHash, s.PasswordHash, s.ImageCredential = nil, nil, ""
	s.LoginType = lt
	switch lt {
	case LoginPIN:
		return s.SetPIN(creds.PIN)
	case LoginPassword:
		return s.SetPassword(creds.Password)
	case LoginImages:
		s.SetImageSequence(creds.Images)
		return nil
	}
	return errors.New("unknown login type")
}

// CheckCredentials verifies creds against the secret of the Student's login type.
func (s *Student) CheckCredentials(creds Credentials) error {
	switch s.LoginType {
	case LoginPIN:
		if creds.PIN == "" || bcrypt.CompareHashAndPassword(s.PINHash, []byte(creds.PIN)) != nil {
			return errInvalidCredentials
		}
	case LoginPassword:
		if creds.Password == "" || bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(creds.Password)) != nil {
			return errInvalidCredentials
		}
	case LoginImages:
		if !MatchImageSequence(s.ImageCredential, creds.Images) {
			return errInvalidCredentials
		}
	default:
		return errInvalidCredentials
	}
	return nil
}
