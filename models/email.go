package models

type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}
