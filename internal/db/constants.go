package db

// timeLayout is the textual timestamp format stored in every table, in UTC.
// It sorts lexicographically and SQLite's date functions understand it.
const timeLayout = "2006-01-02 15:04:05"
