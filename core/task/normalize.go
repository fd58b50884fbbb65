package task

// Normalize maps a raw source record to a Task. Only renaming and defaulting happen here.
func Normalize(rec Record) Task {
	var t Task
	switch r := rec.(type) {
	case GameRecord:
		t = Task{
			ID:                r.ID,
			Name:              r.Name,
			Description:       r.Description,
			StartDate:         r.StartDate,
			EndDate:           r.EndDate,
			Completed:         r.Completed,
			AssignedStudentID: r.StudentID,
			Image:             r.Image,
			Details:           Details{Link: r.Link},
		}
	case MenuRecord:
		t = Task{
			ID:                r.ID,
			Name:              r.Title,
			Description:       r.Notes,
			StartDate:         r.DateFrom,
			EndDate:           r.DateTo,
			Completed:         r.Done,
			AssignedStudentID: r.AssignedTo,
			Image:             r.Picture,
			Details:           Details{Classroom: r.Classroom, ItemIDs: r.MenuIDs},
		}
	case MaterialRecord:
		t = Task{
			ID:                r.ID,
			Name:              r.Name,
			Description:       r.Description,
			StartDate:         r.PickupFrom,
			EndDate:           r.PickupTo,
			Completed:         r.Collected,
			AssignedStudentID: r.StudentID,
			Image:             r.Image,
			Details:           Details{Classroom: r.Classroom, ItemIDs: r.MaterialIDs},
		}
	case StepsRecord:
		t = Task{
			ID:                r.ID,
			Name:              r.Title,
			Description:       r.Instructions,
			StartDate:         r.StartsOn,
			EndDate:           r.EndsOn,
			Completed:         r.Finished,
			AssignedStudentID: r.StudentID,
			Image:             r.Cover,
			Details:           Details{Steps: r.Steps},
		}
	default:
		return Task{}
	}

	t.Source = rec.Source()
	if t.Image == "" {
		t.Image = t.Source.DefaultImage()
	}
	return t
}

// NormalizeAll normalizes every record, keeping their order.
func NormalizeAll(recs []Record) []Task {
	tasks := make([]Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, Normalize(rec))
	}
	return tasks
}
