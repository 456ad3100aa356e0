// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package protocol

// Client → server message types.
const (
	TypeHelloUser          = "HELLO_USER"
	TypeLogin              = "LOGIN"
	TypeCreateGarden       = "CREATE_GARDEN"
	TypeGetUserGardens     = "GET_USER_GARDENS"
	TypeGetGardenDetails   = "GET_GARDEN_DETAILS"
	TypeSearchGardenByCode = "SEARCH_GARDEN_BY_CODE"
	TypeJoinGarden         = "JOIN_GARDEN"
	TypeGetGardenMembers   = "GET_GARDEN_MEMBERS"
	TypeLeaveGarden        = "LEAVE_GARDEN"
	TypeUpdateGarden       = "UPDATE_GARDEN"
	TypeAddPlant           = "ADD_PLANT"
	TypeUpdatePlantDetails = "UPDATE_PLANT_DETAILS"
	TypeDeletePlant        = "DELETE_PLANT"
	TypeUpdatePlantSched   = "UPDATE_PLANT_SCHEDULE"
	TypeIrrigatePlant      = "IRRIGATE_PLANT"
	TypeStopIrrigation     = "STOP_IRRIGATION"
	TypeOpenValve          = "OPEN_VALVE"
	TypeCloseValve         = "CLOSE_VALVE"
	TypeRestartValve       = "RESTART_VALVE"
	TypeGetValveStatus     = "GET_VALVE_STATUS"
	TypeUnblockValve       = "UNBLOCK_VALVE"
	TypeTestValveBlock     = "TEST_VALVE_BLOCK"
	TypeGetIrrigationRes   = "GET_IRRIGATION_RESULT"
	TypeGetPlantMoisture   = "GET_PLANT_MOISTURE"
	TypeGetAllMoisture     = "GET_ALL_MOISTURE"
)

// Server → client asynchronous event types.
const (
	TypeIrrigationStarted   = "IRRIGATION_STARTED"
	TypeIrrigationProgress  = "IRRIGATION_PROGRESS"
	TypeIrrigationDecision  = "IRRIGATION_DECISION"
	TypeIrrigationCancelled = "IRRIGATION_CANCELLED"
	TypeIrrigateSuccess     = "IRRIGATE_SUCCESS"
	TypeIrrigateSkipped     = "IRRIGATE_SKIPPED"
	TypeIrrigateFail        = "IRRIGATE_FAIL"
	TypeValveBlocked        = "VALVE_BLOCKED"
	TypeValveStatus         = "VALVE_STATUS"
)

// Garden-wide broadcast event types.
const (
	TypePlantAddedToGarden      = "PLANT_ADDED_TO_GARDEN"
	TypePlantDeletedFromGarden  = "PLANT_DELETED_FROM_GARDEN"
	TypeGardenIrrigationStarted = "GARDEN_IRRIGATION_STARTED"
	TypeGardenIrrigationStopped = "GARDEN_IRRIGATION_STOPPED"
	TypeGardenValveBlocked      = "GARDEN_VALVE_BLOCKED"
	TypeGardenValveUnblocked    = "GARDEN_VALVE_UNBLOCKED"
	TypeGardenMoistureUpdate    = "GARDEN_MOISTURE_UPDATE"
)

// Controller ↔ server message types.
const (
	TypeHelloPi               = "HELLO_PI"
	TypeWelcome               = "WELCOME"
	TypePiConnect             = "PI_CONNECT"
	TypePing                  = "PING"
	TypePong                  = "PONG"
	TypeGardenSync            = "GARDEN_SYNC"
	TypeUpdatePlant           = "UPDATE_PLANT"
	TypeRemovePlant           = "REMOVE_PLANT"
	TypeUpdatePlantLocation   = "UPDATE_PLANT_LOCATION"
	TypeCheckPowerSupply      = "CHECK_POWER_SUPPLY"
	TypeCheckSensorConnection = "CHECK_SENSOR_CONNECTION"
	TypeCheckValveMechanism   = "CHECK_VALVE_MECHANISM"

	TypeAddPlantResponse        = "ADD_PLANT_RESPONSE"
	TypeUpdatePlantResponse     = "UPDATE_PLANT_RESPONSE"
	TypeRemovePlantResponse     = "REMOVE_PLANT_RESPONSE"
	TypeIrrigatePlantResponse   = "IRRIGATE_PLANT_RESPONSE"
	TypeStopIrrigationResponse  = "STOP_IRRIGATION_RESPONSE"
	TypeOpenValveResponse       = "OPEN_VALVE_RESPONSE"
	TypeCloseValveResponse      = "CLOSE_VALVE_RESPONSE"
	TypeRestartValveResponse    = "RESTART_VALVE_RESPONSE"
	TypeValveStatusResponse     = "VALVE_STATUS_RESPONSE"
	TypePlantMoistureResponse   = "PLANT_MOISTURE_RESPONSE"
	TypeAllMoistureResponse     = "ALL_MOISTURE_RESPONSE"
	TypePowerSupplyResponse     = "CHECK_POWER_SUPPLY_RESPONSE"
	TypeSensorConnResponse      = "CHECK_SENSOR_CONNECTION_RESPONSE"
	TypeValveMechanismResponse  = "CHECK_VALVE_MECHANISM_RESPONSE"
	TypeSensorAssigned          = "SENSOR_ASSIGNED"
	TypeValveAssigned           = "VALVE_ASSIGNED"
	TypePiLog                   = "PI_LOG"
)

// TypeError is the envelope for errors that cannot be attributed to a known
// operation (malformed framing, unknown tokens).
const TypeError = "ERROR"

// Machine-readable error codes carried in *_FAIL frames.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeUnknownType       = "UNKNOWN_TYPE"
	CodeInvalidJSON       = "INVALID_JSON"
	CodeTimeout           = "TIMEOUT"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeUserAlreadyAdmin  = "USER_ALREADY_ADMIN"
	CodeUserAlreadyMembr  = "USER_ALREADY_MEMBER"
	CodeAlreadyInGarden   = "ALREADY_IN_GARDEN"
	CodeGardenNotFound    = "GARDEN_NOT_FOUND"
	CodeNotMember         = "NOT_MEMBER"
	CodeAdminCannotLeave  = "ADMIN_CANNOT_LEAVE"
	CodeGardenFull        = "GARDEN_FULL"
	CodeInvalidLocation   = "INVALID_LOCATION"
	CodeValveBlocked      = "VALVE_BLOCKED"
	CodeControllerOffline = "CONTROLLER_OFFLINE"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodePlantNotFound     = "PLANT_NOT_FOUND"
)

// WebSocket close codes used when the registry replaces or evicts a channel.
const (
	// CloseCodeReplaced is sent to a channel that was replaced by a newer one
	// bound to the same identity.
	CloseCodeReplaced = 4000
	// CloseCodeStale is sent to a controller channel evicted for missing heartbeats.
	CloseCodeStale = 4001
)

// Success derives the success response type for a request type.
func Success(requestType string) string { return requestType + "_SUCCESS" }

// Fail derives the failure response type for a request type.
func Fail(requestType string) string { return requestType + "_FAIL" }
