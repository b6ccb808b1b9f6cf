package screens

import "errors"

var (
	// ErrImproperlyConfigured marks a missing or invalid framework setting.
	ErrImproperlyConfigured = errors.New("screens: improperly configured")
	// ErrHiderIsUnregistered is returned when a button uses a hider tag the checker does not know.
	ErrHiderIsUnregistered = errors.New("screens: hider is unregistered")
	// ErrInvalidSource is returned when a button source does not match its source type.
	ErrInvalidSource = errors.New("screens: invalid button source")
	// ErrUnknownSourceType is returned when a button is created with an unsupported source type.
	ErrUnknownSourceType = errors.New("screens: unknown source type")
	// ErrScreenDescriptionIsEmpty is returned when a screen renders without a description.
	ErrScreenDescriptionIsEmpty = errors.New("screens: screen description is empty")
	// ErrScreenDocumentDataIsEmpty is returned when a document has neither a path nor data.
	ErrScreenDocumentDataIsEmpty = errors.New("screens: screen document data is empty")
	// ErrScreenRouteIsEmpty is returned when a route screen declares no routes.
	ErrScreenRouteIsEmpty = errors.New("screens: screen route is empty")
	// ErrPayloadIsEmpty is returned when the pressed button carried no payload.
	ErrPayloadIsEmpty = errors.New("screens: payload is empty")
	// ErrUnknownScreen is returned for lookups of screens that were never registered.
	ErrUnknownScreen = errors.New("screens: unknown screen")
	// ErrMessengerIsNotSet is returned when rendering before the transport is ready.
	ErrMessengerIsNotSet = errors.New("screens: messenger is not set")
)
