package grid

import "github.com/google/uuid"

func GenDatabaseID() string { return uuid.NewString() }

func GenViewID() string { return uuid.NewString() }

func GenFieldID() string { return uuid.NewString() }

func GenRowID() string { return uuid.NewString() }
