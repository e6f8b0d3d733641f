package grn

// CheckReceivingSubmission validates every line item of a created GRN and
// reports the first offending row. Nothing is submitted unless all rows pass.
func CheckReceivingSubmission(n *Note) error {
	if err := n.requireStatus("submit line items of", StatusCreated); err != nil {
		return err
	}
	for _, li := range n.Lines {
		if err := CheckReceiving(li); err != nil {
			return err
		}
	}
	return nil
}

// CheckQCSubmission validates every line item of a qc_pending GRN. All
// offending rows are reported together.
func CheckQCSubmission(n *Note) error {
	if err := n.requireStatus("submit QC for", StatusQCPending); err != nil {
		return err
	}
	if len(n.Lines) == 0 {
		return newError(KindIllegalTransition, "", "a goods receive note without line items has nothing to submit")
	}
	if issues := qcIssues(n); len(issues) > 0 {
		return incompleteError(issues)
	}
	return nil
}

// SubmitQC runs the QC gate and marks the note eligible for completion.
func SubmitQC(n *Note) error {
	if err := CheckQCSubmission(n); err != nil {
		return err
	}
	n.QCSubmitted = true
	n.Refresh()
	return nil
}

func qcIssues(n *Note) []*Error {
	var issues []*Error
	for _, li := range n.Lines {
		err := CheckQC(li)
		if err == nil {
			continue
		}
		e, ok := AsError(err)
		if !ok {
			e = &Error{Kind: KindQcIncomplete, SKU: li.SKUCode, Message: err.Error(), Err: err}
		}
		issues = append(issues, e)
	}
	return issues
}
