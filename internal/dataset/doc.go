// Package dataset holds the in-memory table the QA pipeline works on.
//
// Every cell is a Value tagged as missing, number or text. Raw input is
// normalised once when it is loaded: null spellings such as "", "NA" or
// "NULL" become missing, and a column whose remaining cells all parse as
// numbers becomes a numeric column. Downstream code switches on the tag
// instead of inspecting raw strings again.
//
// Loaders read CSV, TSV and XLSX input:
//
//	ds, err := dataset.Load("ehr.csv")
//	if err != nil {
//	    return err
//	}
//	cleaned := ds.Clone()
package dataset
