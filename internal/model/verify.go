package model

type VerifyCase struct {
	Name   string     `json:"name"`
	Title  string     `json:"title"`
	State  EntryState `json:"state"`
	Reason []string   `json:"reason"`
}

type DuplicateRom struct {
	MD5   string   `json:"md5"`
	Names []string `json:"names"`
}

type VerifyOutput struct {
	Total      int            `json:"total"`
	CaseList   []VerifyCase   `json:"case_list"`
	Duplicates []DuplicateRom `json:"duplicates"`
	Orphans    []OrphanGroup  `json:"orphans"`
}
