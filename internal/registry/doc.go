// Package registry maps unique names to live named objects.
//
// A Manager watches every registered object through a non-blocking edge, so
// registration never keeps an object alive and an object that destroys
// itself drops out of the registry on its own. Unique names are checked at
// registration time only: renaming a registered object is not re-checked.
//
// Managers are ordinary values that can be passed to the code that needs
// them. InitManager, Install and Instance provide the process-wide accessor
// for callers that cannot be handed one:
//
//	mgr, err := registry.InitManager(registry.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer mgr.Destroy()
//
//	if err := mgr.RegisterObject(volume); err != nil {
//		return err
//	}
package registry
